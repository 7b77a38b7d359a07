package circlebot

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/prilive-com/circlebot/internal/resilience"
	"github.com/prilive-com/circlebot/internal/syncutil"
	"github.com/prilive-com/circlebot/pipeline"
	"github.com/prilive-com/circlebot/receiver"
	"github.com/prilive-com/circlebot/sender"
	"github.com/prilive-com/circlebot/telegram"
	"github.com/prilive-com/circlebot/tg"
)

// DefaultFailureText is sent when a conversion fails.
const DefaultFailureText = "فشل تحويل الصورة إلى ملصق دائري."

const noticeTimeout = 30 * time.Second

// Bot receives Telegram updates and runs the circle pipeline for every
// triggering message.
type Bot struct {
	token    tg.SecretToken
	logger   *slog.Logger
	receiver *receiver.PollingClient
	sender   *sender.Client
	adapter  *telegram.Adapter
	pipeline *pipeline.Pipeline
	limiter  *resilience.RateLimiter // nil when per-chat limiting is off
	updates  chan tg.Update
	runs     *syncutil.Limiter
	config   botConfig

	stopCh    chan struct{}
	loopWg    sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

type botConfig struct {
	// Polling settings
	pollingTimeout   int
	pollingLimit     int
	pollingMaxErrors int
	deleteWebhook    bool
	allowedUpdates   []string
	baseURL          string

	senderConfig    sender.Config
	senderOptions   []sender.Option
	receiverConfig  receiver.Config
	pipelineConfig  pipeline.Config
	pipelineOptions []pipeline.Option

	maxConcurrentRuns int
	perChatRPS        float64
	perChatBurst      int
	failureText       string

	updateBufferSize int

	logger *slog.Logger
}

// Option configures the Bot.
type Option func(*botConfig)

// WithPolling configures long polling.
func WithPolling(timeout, limit int) Option {
	return func(c *botConfig) {
		c.pollingTimeout = timeout
		c.pollingLimit = limit
	}
}

// WithBaseURL points both the sender and the receiver at another API root.
func WithBaseURL(url string) Option {
	return func(c *botConfig) {
		c.baseURL = url
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *botConfig) {
		c.logger = logger
	}
}

// WithRetries sets max retry attempts for outgoing requests.
func WithRetries(max int) Option {
	return func(c *botConfig) {
		c.senderConfig.MaxRetries = max
	}
}

// WithMaxDownloadBytes caps the size of downloaded media.
func WithMaxDownloadBytes(n int64) Option {
	return func(c *botConfig) {
		c.senderConfig.MaxDownloadBytes = n
	}
}

// WithSenderOptions passes extra options to the sender client.
func WithSenderOptions(opts ...sender.Option) Option {
	return func(c *botConfig) {
		c.senderOptions = append(c.senderOptions, opts...)
	}
}

// WithPollingMaxErrors sets max consecutive polling errors.
func WithPollingMaxErrors(max int) Option {
	return func(c *botConfig) {
		c.pollingMaxErrors = max
	}
}

// WithAllowedUpdates filters update types.
func WithAllowedUpdates(types ...string) Option {
	return func(c *botConfig) {
		c.allowedUpdates = types
	}
}

// WithDeleteWebhook deletes an existing webhook before polling.
func WithDeleteWebhook(delete bool) Option {
	return func(c *botConfig) {
		c.deleteWebhook = delete
	}
}

// WithUpdateBufferSize sets the updates channel buffer size.
func WithUpdateBufferSize(size int) Option {
	return func(c *botConfig) {
		c.updateBufferSize = size
	}
}

// WithPipelineConfig sets the conversion settings.
func WithPipelineConfig(cfg pipeline.Config) Option {
	return func(c *botConfig) {
		c.pipelineConfig = cfg
	}
}

// WithPipelineOptions passes extra options to the pipeline.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(c *botConfig) {
		c.pipelineOptions = append(c.pipelineOptions, opts...)
	}
}

// WithMaxConcurrentRuns bounds the number of conversions in flight.
func WithMaxConcurrentRuns(n int) Option {
	return func(c *botConfig) {
		c.maxConcurrentRuns = n
	}
}

// WithChatRateLimit limits triggers per chat. A non-positive rps disables it.
func WithChatRateLimit(rps float64, burst int) Option {
	return func(c *botConfig) {
		c.perChatRPS = rps
		c.perChatBurst = burst
	}
}

// WithFailureText sets the notice sent when a conversion fails. An empty
// text disables the notice.
func WithFailureText(text string) Option {
	return func(c *botConfig) {
		c.failureText = text
	}
}

// New creates a Bot.
func New(token string, opts ...Option) (*Bot, error) {
	if token == "" {
		return nil, tg.ErrInvalidToken
	}

	cfg := botConfig{
		pollingTimeout:    30,
		pollingLimit:      100,
		pollingMaxErrors:  0,
		updateBufferSize:  100,
		senderConfig:      sender.DefaultConfig(),
		receiverConfig:    receiver.DefaultConfig(),
		pipelineConfig:    pipeline.DefaultConfig(),
		maxConcurrentRuns: 8,
		perChatRPS:        0.5,
		perChatBurst:      2,
		failureText:       DefaultFailureText,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	secretToken := tg.SecretToken(token)
	cfg.senderConfig.Token = secretToken
	cfg.receiverConfig.Token = secretToken
	cfg.receiverConfig.PollingTimeout = cfg.pollingTimeout
	cfg.receiverConfig.PollingLimit = cfg.pollingLimit
	cfg.receiverConfig.PollingMaxErrors = cfg.pollingMaxErrors
	cfg.receiverConfig.DeleteWebhookFirst = cfg.deleteWebhook
	if cfg.allowedUpdates != nil {
		cfg.receiverConfig.AllowedUpdates = cfg.allowedUpdates
	}
	cfg.receiverConfig.UpdateBufferSize = cfg.updateBufferSize
	if cfg.baseURL != "" {
		cfg.senderConfig.BaseURL = cfg.baseURL
		cfg.receiverConfig.BaseURL = cfg.baseURL
	}
	if err := cfg.receiverConfig.Validate(); err != nil {
		return nil, err
	}

	senderClient, err := sender.NewFromConfig(cfg.senderConfig,
		append([]sender.Option{sender.WithLogger(logger)}, cfg.senderOptions...)...)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(cfg.pipelineConfig,
		append([]pipeline.Option{pipeline.WithLogger(logger)}, cfg.pipelineOptions...)...)
	if err != nil {
		senderClient.Close()
		return nil, err
	}

	updates := make(chan tg.Update, cfg.updateBufferSize)
	adapter := telegram.NewAdapter(senderClient,
		telegram.WithDownloadTimeout(p.Config().DownloadTimeout),
		telegram.WithLogger(logger),
	)

	bot := &Bot{
		token:    secretToken,
		logger:   logger,
		sender:   senderClient,
		adapter:  adapter,
		pipeline: p,
		updates:  updates,
		runs:     syncutil.NewLimiter(cfg.maxConcurrentRuns),
		config:   cfg,
		stopCh:   make(chan struct{}),
	}

	if cfg.perChatRPS > 0 {
		bot.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			GlobalRPS:   math.Inf(1),
			GlobalBurst: 1,
			KeyRPS:      cfg.perChatRPS,
			KeyBurst:    max(cfg.perChatBurst, 1),
		})
	}

	bot.receiver = receiver.NewPollingClient(
		secretToken,
		updates,
		logger,
		cfg.receiverConfig,
	)

	return bot, nil
}

// Start begins polling and dispatching updates. Runs are bound to ctx.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.receiver.Start(ctx); err != nil {
		return err
	}
	b.loopWg.Go(func() {
		b.dispatchLoop(ctx)
	})
	return nil
}

// Run starts the bot and blocks until ctx ends or polling gives up, then
// closes the bot.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	var err error
	select {
	case <-ctx.Done():
	case <-b.receiver.Done():
		if ctx.Err() == nil {
			err = errors.New("circlebot: polling stopped")
		}
	}
	if cerr := b.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *Bot) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case upd := <-b.updates:
			b.Handle(ctx, upd)
		}
	}
}

// Handle processes one update. Triggering messages start a run in a new
// goroutine once a concurrency slot is free; everything else returns at once.
func (b *Bot) Handle(ctx context.Context, upd tg.Update) {
	raw := upd.EffectiveMessage()
	if raw == nil {
		return
	}
	msg := b.adapter.Wrap(raw)

	if !b.pipeline.Triggered(msg) {
		// Counts and logs the no-trigger outcome without doing any I/O.
		_, _ = b.pipeline.Run(ctx, msg)
		return
	}

	chatID := raw.ChatIDValue()
	if b.limiter != nil && !b.limiter.Allow(strconv.FormatInt(chatID, 10)) {
		b.logger.Info("trigger throttled",
			"chat_id", chatID,
			"message_id", raw.MessageID,
		)
		return
	}

	if err := b.runs.Go(ctx, func() {
		b.process(ctx, msg)
	}); err != nil {
		b.logger.Debug("trigger dropped on shutdown",
			"chat_id", chatID,
			"message_id", raw.MessageID,
			"error", err,
		)
	}
}

func (b *Bot) process(ctx context.Context, msg *telegram.Message) {
	raw := msg.Raw()
	res, err := b.pipeline.Run(ctx, msg)
	if err == nil {
		return
	}

	logger := b.logger.With(
		"chat_id", raw.ChatIDValue(),
		"message_id", raw.MessageID,
		"run_id", res.RunID,
	)
	switch {
	case pipeline.IsCanceled(err):
		logger.Debug("run cancelled")
		return
	case errors.Is(err, pipeline.ErrDelivery) && tg.IsUnreachable(err):
		logger.Info("chat unreachable, reply dropped", "error", err)
		return
	case errors.Is(err, pipeline.ErrDelivery):
		logger.Error("reply delivery failed", "error", err)
		return
	}

	if b.config.failureText == "" {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, noticeTimeout)
	defer cancel()
	if nerr := msg.ReplyText(nctx, b.config.failureText); nerr != nil {
		logger.Warn("failure notice not sent", "error", nerr, "cause", err)
	}
}

// Stop stops polling and waits for in-flight runs.
func (b *Bot) Stop() {
	b.receiver.Stop()
	select {
	case <-b.stopCh:
	default:
		close(b.stopCh)
	}
	b.loopWg.Wait()
	b.runs.Wait()
}

// Close stops the bot and releases all resources. Safe to call more than once.
func (b *Bot) Close() error {
	b.closeOnce.Do(func() {
		b.Stop()
		if b.limiter != nil {
			b.limiter.Close()
		}
		b.closeErr = b.sender.Close()
	})
	return b.closeErr
}

// Updates returns the updates channel fed by the receiver.
func (b *Bot) Updates() <-chan tg.Update {
	return b.updates
}

// IsHealthy reports whether polling is running within its error budget and
// the sender's breaker is letting replies through.
func (b *Bot) IsHealthy() bool {
	return b.receiver.IsHealthy() && b.sender.Available()
}

// Stats returns conversion counters.
func (b *Bot) Stats() pipeline.StatsSnapshot {
	return b.pipeline.Stats()
}

// Sender returns the underlying sender client.
func (b *Bot) Sender() *sender.Client {
	return b.sender
}

// Pipeline returns the conversion pipeline.
func (b *Bot) Pipeline() *pipeline.Pipeline {
	return b.pipeline
}
