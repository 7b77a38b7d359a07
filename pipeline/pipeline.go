package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prilive-com/circlebot/circle"
	"github.com/prilive-com/circlebot/internal/frame"
	"github.com/prilive-com/circlebot/internal/tempfs"
	"github.com/prilive-com/circlebot/internal/validate"
)

// Default reply texts.
const (
	DefaultConfirmationText = "*تم تحويل الصورة إلى ملصق دائري بنجاح!* 🎁"
	DefaultStickerName      = "circlebot"
	StickerFileName         = "processed-circle-sticker.png"
)

// Config holds pipeline settings.
type Config struct {
	TempDir          string
	StickerName      string
	Keywords         []string
	ConfirmationText string
	FFmpegPath       string
	// MaxPixels caps the width times height of a still before it is decoded.
	// Video frames are checked the same way after extraction.
	MaxPixels int64

	ExtractTimeout  time.Duration
	DownloadTimeout time.Duration
	DeliveryTimeout time.Duration
}

// DefaultConfig returns the default configuration. TempDir is left empty,
// which selects os.TempDir()/circlebot.
func DefaultConfig() Config {
	return Config{
		StickerName:      DefaultStickerName,
		Keywords:         DefaultKeywords,
		ConfirmationText: DefaultConfirmationText,
		FFmpegPath:       "ffmpeg",
		MaxPixels:        circle.DefaultMaxPixels,
		ExtractTimeout:   frame.DefaultTimeout,
		DownloadTimeout:  60 * time.Second,
		DeliveryTimeout:  60 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validate.Required("sticker_name", c.StickerName); err != nil {
		return err
	}
	if err := validate.Required("confirmation_text", c.ConfirmationText); err != nil {
		return err
	}
	if err := validate.Positive("max_pixels", c.MaxPixels); err != nil {
		return err
	}
	return validate.Durations(map[string]time.Duration{
		"extract_timeout":  c.ExtractTimeout,
		"download_timeout": c.DownloadTimeout,
		"delivery_timeout": c.DeliveryTimeout,
	}, true)
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StickerName == "" {
		c.StickerName = def.StickerName
	}
	if len(c.Keywords) == 0 {
		c.Keywords = def.Keywords
	}
	if c.ConfirmationText == "" {
		c.ConfirmationText = def.ConfirmationText
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = def.FFmpegPath
	}
	if c.MaxPixels == 0 {
		c.MaxPixels = def.MaxPixels
	}
	if c.ExtractTimeout == 0 {
		c.ExtractTimeout = def.ExtractTimeout
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = def.DownloadTimeout
	}
	if c.DeliveryTimeout == 0 {
		c.DeliveryTimeout = def.DeliveryTimeout
	}
	return c
}

// Pipeline runs conversions. It is safe for concurrent use; each Run owns
// its own temp scope.
type Pipeline struct {
	cfg       Config
	keywords  []string
	temp      *tempfs.Manager
	extractor frame.Extractor
	logger    *slog.Logger
	stats     Stats
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithExtractor replaces the ffmpeg frame extractor.
func WithExtractor(e frame.Extractor) Option {
	return func(p *Pipeline) {
		p.extractor = e
	}
}

// New creates a Pipeline. Zero-valued fields of cfg take their defaults.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		keywords: cfg.Keywords,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.temp = tempfs.New(cfg.TempDir, tempfs.WithLogger(p.logger))
	if p.extractor == nil {
		p.extractor = frame.New(
			frame.WithBinary(cfg.FFmpegPath),
			frame.WithTimeout(cfg.ExtractTimeout),
			frame.WithLogger(p.logger),
		)
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Stats returns the outcome counters.
func (p *Pipeline) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

// Run processes one inbound message. Ignored messages return a NoOp result
// and a nil error; failures return a *StageError. Temp files are gone by the
// time Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, msg Message) (res Result, err error) {
	defer func() { p.stats.record(res, err) }()

	if !p.Triggered(msg) {
		p.logger.Debug("message ignored", "reason", NoOpNoTrigger)
		return Result{Outcome: OutcomeNoOp, NoOpReason: NoOpNoTrigger}, nil
	}

	scope := p.temp.NewScope()
	defer scope.Close()
	runID := scope.RunID()
	logger := p.logger.With("run_id", runID)
	start := time.Now()

	res = Result{RunID: runID}

	r, err := p.resolve(ctx, runID, msg)
	if err != nil {
		logger.Warn("run failed", "stage", StageOf(err), "error", err)
		return res, err
	}
	res.Kind = r.kind
	if r.noop != "" {
		logger.Info("message ignored", "reason", r.noop, "kind", r.kind)
		res.Outcome, res.NoOpReason = OutcomeNoOp, r.noop
		return res, nil
	}

	data, err := p.convert(ctx, scope, r.kind, r.blob)
	if err != nil {
		logger.Warn("run failed", "stage", StageOf(err), "kind", r.kind, "error", err)
		return res, err
	}
	// Masked bytes are in memory; nothing on disk is needed past this point.
	scope.Close()

	if err := p.dispatch(ctx, runID, msg, data); err != nil {
		logger.Warn("run failed", "stage", StageDelivery, "error", err)
		return res, err
	}

	logger.Info("sticker delivered",
		"kind", r.kind,
		"bytes", len(data),
		"duration", time.Since(start),
	)
	res.Outcome = OutcomeDelivered
	return res, nil
}

// Convert runs the extract and mask stages on a blob without any messaging
// and returns the masked PNG.
func (p *Pipeline) Convert(ctx context.Context, kind MediaKind, blob MediaBlob) ([]byte, error) {
	scope := p.temp.NewScope()
	defer scope.Close()
	return p.convert(ctx, scope, kind, blob)
}

func (p *Pipeline) convert(ctx context.Context, scope *tempfs.Scope, kind MediaKind, blob MediaBlob) ([]byte, error) {
	if err := p.temp.EnsureDir(); err != nil {
		return nil, stageErr(StageWrite, scope.RunID(), err)
	}
	still, err := p.extract(ctx, scope, kind, blob)
	if err != nil {
		return nil, err
	}
	return p.mask(scope, still)
}

func (p *Pipeline) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
