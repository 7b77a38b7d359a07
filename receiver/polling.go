package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/prilive-com/circlebot/internal/httpclient"
	"github.com/prilive-com/circlebot/internal/resilience"
	"github.com/prilive-com/circlebot/tg"
)

// PollingClient feeds getUpdates results into a channel.
type PollingClient struct {
	token   tg.SecretToken
	baseURL string
	updates chan<- tg.Update
	logger  *slog.Logger

	timeout        int
	limit          int
	maxErrors      int
	allowedUpdates []string
	dropWebhook    bool

	backoff resilience.RetryConfig
	sleeper resilience.Sleeper
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]

	running           atomic.Bool
	offset            atomic.Int64
	consecutiveErrors atomic.Int32

	mu     sync.Mutex // guards stopCh
	stopCh chan struct{}
	loop   sync.WaitGroup
}

// PollingOption configures the PollingClient.
type PollingOption func(*PollingClient)

// WithBreaker replaces the getUpdates circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[[]byte]) PollingOption {
	return func(c *PollingClient) { c.breaker = cb }
}

// WithSleeper replaces the wait between failed polls.
func WithSleeper(s resilience.Sleeper) PollingOption {
	return func(c *PollingClient) { c.sleeper = s }
}

// NewPollingClient creates a long polling client. cfg.Token is ignored in
// favour of token.
func NewPollingClient(
	token tg.SecretToken,
	updates chan<- tg.Update,
	logger *slog.Logger,
	cfg Config,
	opts ...PollingOption,
) *PollingClient {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultConfig().BaseURL
	}

	c := &PollingClient{
		token:          token,
		baseURL:        baseURL,
		updates:        updates,
		logger:         logger,
		timeout:        cfg.PollingTimeout,
		limit:          cfg.PollingLimit,
		maxErrors:      cfg.PollingMaxErrors,
		allowedUpdates: cfg.AllowedUpdates,
		dropWebhook:    cfg.DeleteWebhookFirst,
		backoff: resilience.RetryConfig{
			BaseWait:   cfg.RetryInitialDelay,
			MaxWait:    cfg.RetryMaxDelay,
			Multiplier: cfg.RetryBackoffFactor,
			Jitter:     0.25,
		},
		sleeper: resilience.DefaultSleeper,
		client:  pollingHTTPClient(cfg.PollingTimeout),
		stopCh:  make(chan struct{}),
	}

	breakerCfg := resilience.DefaultBreakerConfig("circlebot-polling")
	breakerCfg.MaxRequests = cfg.BreakerMaxRequests
	breakerCfg.Interval = cfg.BreakerInterval
	breakerCfg.Timeout = cfg.BreakerTimeout
	breakerCfg.FailureRatio = 0.6
	breakerCfg.MinRequests = 3
	breakerCfg.Logger = logger
	c.breaker = resilience.NewBreaker[[]byte](breakerCfg)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// The HTTP timeout must outlast the long-poll timeout or every idle poll fails.
func pollingHTTPClient(timeoutSeconds int) *http.Client {
	cfg := httpclient.DefaultConfig()
	cfg.RequestTimeout = time.Duration(timeoutSeconds+10) * time.Second
	cfg.ResponseHeaderTimeout = time.Duration(timeoutSeconds+5) * time.Second
	cfg.MaxIdleConns = 4
	cfg.MaxIdleConnsPerHost = 4
	return httpclient.New(cfg)
}

// Start launches the poll loop. It fails if the loop already runs or the
// webhook cannot be removed.
func (c *PollingClient) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	c.mu.Lock()
	select {
	case <-c.stopCh:
		c.stopCh = make(chan struct{})
	default:
	}
	stop := c.stopCh
	c.mu.Unlock()

	if c.dropWebhook {
		c.logger.Info("deleting existing webhook")
		if err := c.deleteWebhook(ctx); err != nil {
			c.running.Store(false)
			return fmt.Errorf("delete webhook: %w", err)
		}
	}

	c.loop.Go(func() {
		defer c.running.Store(false)
		c.pollLoop(ctx, stop)
	})

	c.logger.Info("long polling started",
		"timeout", c.timeout,
		"limit", c.limit,
		"max_errors", c.maxErrors,
	)
	return nil
}

// Stop signals the loop and waits for it to exit. Safe to call repeatedly.
func (c *PollingClient) Stop() {
	c.mu.Lock()
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	c.mu.Unlock()

	c.loop.Wait()
	c.logger.Info("long polling stopped")
}

// Done returns a channel closed once the poll loop has exited, whether by
// Stop, context cancellation, or the error budget running out.
func (c *PollingClient) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		c.loop.Wait()
		close(done)
	}()
	return done
}

// Running reports whether the poll loop is active.
func (c *PollingClient) Running() bool {
	return c.running.Load()
}

// IsHealthy reports whether polling runs and is under the error budget.
func (c *PollingClient) IsHealthy() bool {
	if !c.running.Load() {
		return false
	}
	return c.maxErrors == 0 || int(c.consecutiveErrors.Load()) < c.maxErrors
}

func (c *PollingClient) ConsecutiveErrors() int32 {
	return c.consecutiveErrors.Load()
}

// Offset is the next update_id requested from Telegram.
func (c *PollingClient) Offset() int64 {
	return c.offset.Load()
}

func (c *PollingClient) pollLoop(ctx context.Context, stop <-chan struct{}) {
	// The sleeper only watches ctx, so Stop cancels it too.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for ctx.Err() == nil {
		updates, err := c.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if !c.recordFailure(ctx, err) {
				return
			}
			continue
		}
		c.consecutiveErrors.Store(0)

		// Offset advances only after the consumer has the update, so an
		// interrupted delivery is redelivered on the next poll.
		for _, update := range updates {
			select {
			case c.updates <- update:
				if next := int64(update.UpdateID) + 1; next > c.offset.Load() {
					c.offset.Store(next)
				}
				c.logger.Debug("update delivered", "update_id", update.UpdateID)
			case <-ctx.Done():
				c.logger.Info("update delivery interrupted", "update_id", update.UpdateID)
				return
			}
		}
	}
	c.logger.Info("poll loop exiting", "reason", context.Cause(ctx))
}

// recordFailure counts err and waits out the backoff. It returns false when
// the loop should end.
func (c *PollingClient) recordFailure(ctx context.Context, err error) bool {
	n := c.consecutiveErrors.Add(1)
	wait := resilience.Backoff(c.backoff, int(n)-1)
	c.logger.Error("fetch updates failed",
		"error", err,
		"consecutive_errors", n,
		"retry_delay", wait,
	)
	if errors.Is(err, tg.ErrConflict) {
		c.logger.Warn("another client is polling with this token or a webhook is set")
	}
	if c.maxErrors > 0 && int(n) >= c.maxErrors {
		c.logger.Error("max consecutive errors exceeded", "max_errors", c.maxErrors)
		return false
	}
	return c.sleeper.Sleep(ctx, wait) == nil
}
