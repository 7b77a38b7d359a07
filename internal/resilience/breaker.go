package resilience

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // Requests let through while half-open
	Interval     time.Duration // Closed-state counting window (0 = never reset)
	Timeout      time.Duration // Open period before half-open
	Threshold    uint32        // Consecutive failures that trip
	FailureRatio float64       // Failure ratio that trips once MinRequests is reached
	MinRequests  uint32

	// ReadyToTrip replaces the Threshold/FailureRatio policy when set.
	ReadyToTrip func(counts gobreaker.Counts) bool
	// IsSuccessful decides which errors leave the counts untouched.
	// Nil treats every error as a failure.
	IsSuccessful func(err error) bool
	// Logger receives state transitions. Nil keeps them silent.
	Logger *slog.Logger
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  5,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		Threshold:    5,
		FailureRatio: 0.5,
		MinRequests:  10,
	}
}

// NewBreaker creates a new circuit breaker with the given configuration.
func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	ready := cfg.ReadyToTrip
	if ready == nil {
		ready = tripPolicy(cfg.Threshold, cfg.MinRequests, cfg.FailureRatio)
	}

	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  ready,
		IsSuccessful: cfg.IsSuccessful,
	}

	if logger := cfg.Logger; logger != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		}
	}

	return gobreaker.NewCircuitBreaker[T](settings)
}

func tripPolicy(threshold, minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if threshold > 0 && counts.ConsecutiveFailures >= threshold {
			return true
		}
		if ratio > 0 && counts.Requests > 0 && counts.Requests >= minRequests {
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		}
		return false
	}
}

// IsOpen returns true if the circuit breaker is in the open state.
func IsOpen[T any](cb *gobreaker.CircuitBreaker[T]) bool {
	return cb.State() == gobreaker.StateOpen
}

// Rejected reports whether err is the breaker refusing a call rather than
// the call itself failing.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
