package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/circlebot/internal/config"
	"github.com/prilive-com/circlebot/internal/testutil"
	"github.com/prilive-com/circlebot/pipeline"
)

func TestLoad_Defaults(t *testing.T) {
	v, err := config.NewViper("")
	require.NoError(t, err)

	cfg := config.Load(v)

	assert.Equal(t, config.DefaultConfig(), cfg)
	assert.Equal(t, "circlebot", cfg.StickerName)
	assert.Equal(t, 30*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, int64(20<<20), cfg.Telegram.MaxDownloadBytes)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateTelegram(), "token is required")
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CIRCLEBOT_TELEGRAM_TOKEN", testutil.TestToken)
	t.Setenv("CIRCLEBOT_TEMP_DIR", "/srv/tmp")
	t.Setenv("CIRCLEBOT_STICKER_NAME", "round")
	t.Setenv("CIRCLEBOT_EXTRACT_TIMEOUT", "5s")
	t.Setenv("CIRCLEBOT_LOGGING_LEVEL", "debug")
	t.Setenv("CIRCLEBOT_MAX_PIXELS", "1000000")

	v, err := config.NewViper("")
	require.NoError(t, err)
	cfg := config.Load(v)

	assert.Equal(t, testutil.TestToken, cfg.Telegram.Token.Value())
	assert.Equal(t, "/srv/tmp", cfg.TempDir)
	assert.Equal(t, "round", cfg.StickerName)
	assert.Equal(t, 5*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, int64(1_000_000), cfg.MaxPixels)
	assert.Equal(t, int64(1_000_000), cfg.Pipeline().MaxPixels)
	assert.NoError(t, cfg.ValidateTelegram())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "circlebot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"
  polling_timeout: 10
sticker_name: file-pack
max_concurrent_runs: 2
per_chat_rps: 0
download_timeout: 15s
logging:
  format: json
`), 0o600))

	v, err := config.NewViper(path)
	require.NoError(t, err)
	cfg := config.Load(v)

	assert.Equal(t, 10, cfg.Telegram.PollingTimeout)
	assert.Equal(t, "file-pack", cfg.StickerName)
	assert.Equal(t, 2, cfg.MaxConcurrentRuns)
	assert.Zero(t, cfg.PerChatRPS)
	assert.Equal(t, 15*time.Second, cfg.DownloadTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateTelegram())
}

func TestNewViper_MissingFile(t *testing.T) {
	_, err := config.NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty temp dir", func(c *config.Config) { c.TempDir = "" }},
		{"empty sticker name", func(c *config.Config) { c.StickerName = "" }},
		{"zero extract timeout", func(c *config.Config) { c.ExtractTimeout = 0 }},
		{"zero max pixels", func(c *config.Config) { c.MaxPixels = 0 }},
		{"no concurrency", func(c *config.Config) { c.MaxConcurrentRuns = 0 }},
		{"negative rps", func(c *config.Config) { c.PerChatRPS = -1 }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateTelegram(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Telegram.Token = testutil.TestToken
	require.NoError(t, cfg.ValidateTelegram())

	cfg.Telegram.PollingTimeout = 61
	assert.Error(t, cfg.ValidateTelegram())

	cfg = config.DefaultConfig()
	cfg.Telegram.Token = testutil.TestToken
	cfg.Telegram.BaseURL = "ftp://example.com"
	assert.Error(t, cfg.ValidateTelegram())
}

func TestPipeline(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TempDir = "/x"

	p := cfg.Pipeline()

	assert.Equal(t, "/x", p.TempDir)
	assert.Equal(t, pipeline.DefaultKeywords, p.Keywords)
	assert.Equal(t, cfg.DeliveryTimeout, p.DeliveryTimeout)
	assert.Len(t, cfg.BotOptions(), 7)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.NewLogger(config.Logging{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	_, err = config.NewLogger(config.Logging{Format: "xml"}, &buf)
	assert.Error(t, err)
}
