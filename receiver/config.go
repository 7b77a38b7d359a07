package receiver

import (
	"time"

	"github.com/prilive-com/circlebot/internal/validate"
	"github.com/prilive-com/circlebot/tg"
)

// Config holds receiver configuration.
type Config struct {
	// Bot token
	Token tg.SecretToken

	// API root (defaults to https://api.telegram.org)
	BaseURL string

	// Long polling configuration
	PollingTimeout     int           // Seconds to wait (0-60)
	PollingLimit       int           // Max updates per request (1-100)
	PollingMaxErrors   int           // Max consecutive errors (0 = unlimited)
	DeleteWebhookFirst bool          // Delete webhook before starting
	AllowedUpdates     []string      // Filter update types
	RetryInitialDelay  time.Duration // Initial retry delay
	RetryMaxDelay      time.Duration // Maximum retry delay
	RetryBackoffFactor float64       // Backoff multiplier

	UpdateBufferSize int // Channel buffer size

	// Circuit breaker
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://api.telegram.org",
		PollingTimeout:     30,
		PollingLimit:       100,
		PollingMaxErrors:   0,
		RetryInitialDelay:  time.Second,
		RetryMaxDelay:      60 * time.Second,
		RetryBackoffFactor: 2.0,
		AllowedUpdates:     []string{"message", "channel_post"},
		UpdateBufferSize:   100,
		BreakerMaxRequests: 5,
		BreakerInterval:    2 * time.Minute,
		BreakerTimeout:     60 * time.Second,
	}
}

// Validate checks the polling parameters against Bot API limits.
func (c Config) Validate() error {
	if c.Token.IsEmpty() {
		return ErrTokenRequired
	}
	if err := validate.InRange("polling_timeout", c.PollingTimeout, 0, 60); err != nil {
		return err
	}
	if err := validate.InRange("polling_limit", c.PollingLimit, 1, 100); err != nil {
		return err
	}
	if c.RetryBackoffFactor < 1 {
		return validate.Newf("retry_backoff_factor", "must be at least 1, got %g", c.RetryBackoffFactor)
	}
	return validate.NonNegative("update_buffer_size", c.UpdateBufferSize)
}
