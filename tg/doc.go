// Package tg holds the slice of the Bot API that circlebot reads: updates,
// messages and their media, plus the error model shared by receiver and
// sender.
//
// API refusals are *APIError values that unwrap to a sentinel, so callers
// branch with errors.Is:
//
//	if errors.Is(err, tg.ErrBotBlocked) { ... }
//	if tg.IsUnreachable(err) { ... }
//
// SecretToken keeps the bot token out of logs and encoded output; only its
// public bot ID is ever printed.
package tg
