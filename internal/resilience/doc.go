// Package resilience holds the failure-handling building blocks shared by the
// Telegram sender, the polling receiver and the bot host: circuit breakers
// (sony/gobreaker), keyed rate limiters (golang.org/x/time/rate), retry with
// jittered backoff and single-flight deduplication.
package resilience
