// Package config loads circlebot settings from a config file and the
// environment.
//
// Keys are read through viper. Every key can be overridden by an environment
// variable with the CIRCLEBOT_ prefix and dots replaced by underscores, e.g.
// CIRCLEBOT_TELEGRAM_TOKEN or CIRCLEBOT_TEMP_DIR.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prilive-com/circlebot"
	"github.com/prilive-com/circlebot/internal/validate"
	"github.com/prilive-com/circlebot/pipeline"
	"github.com/prilive-com/circlebot/tg"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CIRCLEBOT"

// Config is the full application configuration.
type Config struct {
	Telegram Telegram

	TempDir          string
	StickerName      string
	ConfirmationText string
	FailureText      string
	FFmpegPath       string
	MaxPixels        int64

	ExtractTimeout  time.Duration
	DownloadTimeout time.Duration
	DeliveryTimeout time.Duration

	MaxConcurrentRuns int
	PerChatRPS        float64
	PerChatBurst      int

	Logging Logging
}

// Telegram holds Bot API settings.
type Telegram struct {
	Token            tg.SecretToken
	BaseURL          string
	PollingTimeout   int
	MaxDownloadBytes int64
}

// Logging holds log handler settings.
type Logging struct {
	Level     string
	Format    string
	AddSource bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	p := pipeline.DefaultConfig()
	return Config{
		Telegram: Telegram{
			BaseURL:          "https://api.telegram.org",
			PollingTimeout:   30,
			MaxDownloadBytes: 20 << 20,
		},
		TempDir:           filepath.Join(os.TempDir(), "circlebot"),
		StickerName:       p.StickerName,
		ConfirmationText:  p.ConfirmationText,
		FailureText:       circlebot.DefaultFailureText,
		FFmpegPath:        p.FFmpegPath,
		MaxPixels:         p.MaxPixels,
		ExtractTimeout:    p.ExtractTimeout,
		DownloadTimeout:   p.DownloadTimeout,
		DeliveryTimeout:   p.DeliveryTimeout,
		MaxConcurrentRuns: 8,
		PerChatRPS:        0.5,
		PerChatBurst:      2,
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every key with its default on v, which also makes
// the keys visible to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.base_url", d.Telegram.BaseURL)
	v.SetDefault("telegram.polling_timeout", d.Telegram.PollingTimeout)
	v.SetDefault("telegram.max_download_bytes", d.Telegram.MaxDownloadBytes)
	v.SetDefault("temp_dir", d.TempDir)
	v.SetDefault("sticker_name", d.StickerName)
	v.SetDefault("confirmation_text", d.ConfirmationText)
	v.SetDefault("failure_text", d.FailureText)
	v.SetDefault("ffmpeg_path", d.FFmpegPath)
	v.SetDefault("max_pixels", d.MaxPixels)
	v.SetDefault("extract_timeout", d.ExtractTimeout)
	v.SetDefault("download_timeout", d.DownloadTimeout)
	v.SetDefault("delivery_timeout", d.DeliveryTimeout)
	v.SetDefault("max_concurrent_runs", d.MaxConcurrentRuns)
	v.SetDefault("per_chat_rps", d.PerChatRPS)
	v.SetDefault("per_chat_burst", d.PerChatBurst)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.add_source", false)
}

// NewViper returns a viper instance with defaults and environment overrides.
// When configFile is not empty it is read as well.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile = strings.TrimSpace(configFile); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load builds a Config from v.
func Load(v *viper.Viper) Config {
	return Config{
		Telegram: Telegram{
			Token:            tg.SecretToken(strings.TrimSpace(v.GetString("telegram.token"))),
			BaseURL:          v.GetString("telegram.base_url"),
			PollingTimeout:   v.GetInt("telegram.polling_timeout"),
			MaxDownloadBytes: v.GetInt64("telegram.max_download_bytes"),
		},
		TempDir:           v.GetString("temp_dir"),
		StickerName:       v.GetString("sticker_name"),
		ConfirmationText:  v.GetString("confirmation_text"),
		FailureText:       v.GetString("failure_text"),
		FFmpegPath:        v.GetString("ffmpeg_path"),
		MaxPixels:         v.GetInt64("max_pixels"),
		ExtractTimeout:    v.GetDuration("extract_timeout"),
		DownloadTimeout:   v.GetDuration("download_timeout"),
		DeliveryTimeout:   v.GetDuration("delivery_timeout"),
		MaxConcurrentRuns: v.GetInt("max_concurrent_runs"),
		PerChatRPS:        v.GetFloat64("per_chat_rps"),
		PerChatBurst:      v.GetInt("per_chat_burst"),
		Logging: Logging{
			Level:     v.GetString("logging.level"),
			Format:    v.GetString("logging.format"),
			AddSource: v.GetBool("logging.add_source"),
		},
	}
}

// Validate checks everything the conversion path needs. The Telegram token
// is checked separately by ValidateTelegram since offline commands do not
// need it.
func (c Config) Validate() error {
	if err := validate.Required("temp_dir", c.TempDir); err != nil {
		return err
	}
	if err := validate.Required("sticker_name", c.StickerName); err != nil {
		return err
	}
	if err := validate.Required("ffmpeg_path", c.FFmpegPath); err != nil {
		return err
	}
	if err := validate.Durations(map[string]time.Duration{
		"extract_timeout":  c.ExtractTimeout,
		"download_timeout": c.DownloadTimeout,
		"delivery_timeout": c.DeliveryTimeout,
	}, false); err != nil {
		return err
	}
	if err := validate.Positive("max_pixels", c.MaxPixels); err != nil {
		return err
	}
	if err := validate.Positive("max_concurrent_runs", c.MaxConcurrentRuns); err != nil {
		return err
	}
	if err := validate.NonNegative("per_chat_rps", c.PerChatRPS); err != nil {
		return err
	}
	if err := validate.NonNegative("per_chat_burst", c.PerChatBurst); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text", "json":
	default:
		return validate.Newf("logging.format", "unknown format %q", c.Logging.Format)
	}
	return nil
}

// ValidateTelegram checks the Bot API settings.
func (c Config) ValidateTelegram() error {
	if err := validate.Token(c.Telegram.Token.Value()); err != nil {
		return err
	}
	if err := validate.URL(c.Telegram.BaseURL); err != nil {
		return err
	}
	if err := validate.InRange("telegram.polling_timeout", c.Telegram.PollingTimeout, 0, 60); err != nil {
		return err
	}
	return validate.Positive("telegram.max_download_bytes", c.Telegram.MaxDownloadBytes)
}

// Pipeline returns the conversion settings.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		TempDir:          c.TempDir,
		StickerName:      c.StickerName,
		Keywords:         pipeline.DefaultKeywords,
		ConfirmationText: c.ConfirmationText,
		FFmpegPath:       c.FFmpegPath,
		MaxPixels:        c.MaxPixels,
		ExtractTimeout:   c.ExtractTimeout,
		DownloadTimeout:  c.DownloadTimeout,
		DeliveryTimeout:  c.DeliveryTimeout,
	}
}

// BotOptions returns the bot options matching c.
func (c Config) BotOptions() []circlebot.Option {
	return []circlebot.Option{
		circlebot.WithBaseURL(c.Telegram.BaseURL),
		circlebot.WithPolling(c.Telegram.PollingTimeout, 100),
		circlebot.WithMaxDownloadBytes(c.Telegram.MaxDownloadBytes),
		circlebot.WithPipelineConfig(c.Pipeline()),
		circlebot.WithMaxConcurrentRuns(c.MaxConcurrentRuns),
		circlebot.WithChatRateLimit(c.PerChatRPS, c.PerChatBurst),
		circlebot.WithFailureText(c.FailureText),
	}
}
