package sender

import (
	"time"

	"github.com/prilive-com/circlebot/internal/validate"
	"github.com/prilive-com/circlebot/tg"
)

// Config holds sender configuration.
type Config struct {
	Token tg.SecretToken

	BaseURL        string
	RequestTimeout time.Duration
	KeepAlive      time.Duration
	MaxIdleConns   int
	IdleTimeout    time.Duration

	// Outbound rate limits. Replies to a chat wait on both the global and the
	// chat limiter; group chats (negative IDs) use GroupRPS when it is set.
	GlobalRPS       float64
	GlobalBurst     int
	PerChatRPS      float64
	PerChatBurst    int
	GroupRPS        float64
	GroupBurst      int
	MaxChatLimiters int

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration

	MaxRetries    int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
	RetryFactor   float64

	MaxTextLength int
	// MaxDownloadBytes caps DownloadFile. The Bot API serves at most 20MB.
	MaxDownloadBytes int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://api.telegram.org",
		RequestTimeout:     30 * time.Second,
		KeepAlive:          30 * time.Second,
		MaxIdleConns:       100,
		IdleTimeout:        90 * time.Second,
		GlobalRPS:          30,
		GlobalBurst:        10,
		PerChatRPS:         1,
		PerChatBurst:       3,
		GroupRPS:           0.33, // ~20/min, Telegram's group chat limit
		GroupBurst:         2,
		MaxChatLimiters:    10000,
		BreakerMaxRequests: 5,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     30 * time.Second,
		MaxRetries:         3,
		RetryBaseWait:      time.Second,
		RetryMaxWait:       30 * time.Second,
		RetryFactor:        2.0,
		MaxTextLength:      4096,
		MaxDownloadBytes:   20 << 20,
	}
}

// Validate checks the settings New and NewFromConfig depend on.
func (c Config) Validate() error {
	if c.Token.IsEmpty() {
		return tg.ErrInvalidToken
	}
	if err := validate.URL(c.BaseURL); err != nil {
		return err
	}
	if err := validate.NonNegative("max_retries", c.MaxRetries); err != nil {
		return err
	}
	if c.MaxRetries > 0 && c.RetryFactor < 1 {
		return validate.Newf("retry_factor", "must be at least 1, got %g", c.RetryFactor)
	}
	if err := validate.Positive("global_rps", c.GlobalRPS); err != nil {
		return err
	}
	if err := validate.Positive("per_chat_rps", c.PerChatRPS); err != nil {
		return err
	}
	return validate.Positive("max_text_length", c.MaxTextLength)
}
