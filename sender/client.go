package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/prilive-com/circlebot/internal/httpclient"
	"github.com/prilive-com/circlebot/internal/resilience"
	"github.com/prilive-com/circlebot/internal/scrub"
	"github.com/prilive-com/circlebot/tg"
)

const maxResponseSize = 10 << 20 // 10MB

// Sleeper waits between retries.
type Sleeper = resilience.Sleeper

// CircuitBreakerSettings tunes the breaker in front of every API call.
type CircuitBreakerSettings struct {
	MaxRequests uint32        // Probes allowed while half-open
	Interval    time.Duration // Closed-state counting window; 0 never resets
	Timeout     time.Duration // Open period before probing again

	// ReadyToTrip overrides the default policy of opening at a 50% failure
	// rate once 3 requests were counted.
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// DefaultCircuitBreakerSettings returns production defaults.
func DefaultCircuitBreakerSettings() CircuitBreakerSettings {
	return CircuitBreakerSettings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// Client talks to the Telegram Bot API on behalf of the bot.
type Client struct {
	config          Config
	httpClient      *http.Client
	logger          *slog.Logger
	limiter         *resilience.RateLimiter
	breaker         *gobreaker.CircuitBreaker[*apiResponse]
	breakerSettings CircuitBreakerSettings
	sleeper         Sleeper
	closeOnce       sync.Once
}

type apiResponse struct {
	OK          bool                   `json:"ok"`
	Result      json.RawMessage        `json:"result,omitempty"`
	ErrorCode   int                    `json:"error_code,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parameters  *tg.ResponseParameters `json:"parameters,omitempty"`
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the global rate limit shared by every chat.
func WithRateLimit(globalRPS float64, burst int) Option {
	return func(c *Client) {
		c.config.GlobalRPS = globalRPS
		c.config.GlobalBurst = burst
	}
}

// WithPerChatRateLimit sets per-chat rate limiting parameters.
func WithPerChatRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.config.PerChatRPS = rps
		c.config.PerChatBurst = burst
	}
}

// WithRetries sets retry parameters.
func WithRetries(max int) Option {
	return func(c *Client) {
		c.config.MaxRetries = max
	}
}

// WithBaseURL sets the API base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.config.BaseURL = url
	}
}

// WithSleeper sets a custom sleeper for retry timing (useful for testing).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleeper = s
	}
}

// WithMaxDownloadBytes caps the size of files fetched by DownloadFile.
func WithMaxDownloadBytes(n int64) Option {
	return func(c *Client) {
		c.config.MaxDownloadBytes = n
	}
}

// WithCircuitBreakerSettings configures the circuit breaker.
func WithCircuitBreakerSettings(settings CircuitBreakerSettings) Option {
	return func(c *Client) {
		c.breakerSettings = settings
	}
}

// New creates a new Client with the given token and options.
func New(token string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Token = tg.SecretToken(token)
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig creates a Client from a Config.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		config: cfg,
		breakerSettings: CircuitBreakerSettings{
			MaxRequests: cfg.BreakerMaxRequests,
			Interval:    cfg.BreakerInterval,
			Timeout:     cfg.BreakerTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sleeper == nil {
		c.sleeper = resilience.DefaultSleeper
	}

	hc := httpclient.DefaultConfig()
	hc.RequestTimeout = c.config.RequestTimeout
	hc.IdleTimeout = c.config.IdleTimeout
	hc.MaxIdleConns = c.config.MaxIdleConns
	hc.KeepAlive = c.config.KeepAlive
	c.httpClient = httpclient.New(hc)

	c.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		GlobalRPS:   c.config.GlobalRPS,
		GlobalBurst: c.config.GlobalBurst,
		KeyRPS:      c.config.PerChatRPS,
		KeyBurst:    c.config.PerChatBurst,
		MaxKeys:     c.config.MaxChatLimiters,
		KeyLimit:    c.groupLimit,
	})

	bc := resilience.BreakerConfig{
		Name:         "circlebot-sender",
		MaxRequests:  c.breakerSettings.MaxRequests,
		Interval:     c.breakerSettings.Interval,
		Timeout:      c.breakerSettings.Timeout,
		ReadyToTrip:  c.breakerSettings.ReadyToTrip,
		FailureRatio: 0.5,
		MinRequests:  3,
		IsSuccessful: isBreakerSuccess,
		Logger:       c.logger,
	}
	c.breaker = resilience.NewBreaker[*apiResponse](bc)

	return c, nil
}

// groupLimit applies the group rate to negative chat IDs, Telegram's
// encoding for groups and channels.
func (c *Client) groupLimit(chatID string) (float64, int, bool) {
	if c.config.GroupRPS <= 0 {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id >= 0 {
		return 0, 0, false
	}
	return c.config.GroupRPS, max(c.config.GroupBurst, 1), true
}

// Close releases resources used by the client.
// It is safe to call Close concurrently with other methods;
// in-flight requests will complete normally or with context errors.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.limiter.Close()
		c.httpClient.CloseIdleConnections()
	})
	return nil
}

// ChatLimiterCount returns the number of active per-chat limiters.
func (c *Client) ChatLimiterCount() int {
	return c.limiter.Len()
}

// BreakerState reports the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Available reports whether requests are currently let through, i.e. the
// circuit breaker is not open.
func (c *Client) Available() bool {
	return !resilience.IsOpen(c.breaker)
}

func (c *Client) executeRequest(ctx context.Context, method string, payload any, chatIDs ...string) (*apiResponse, error) {
	if len(chatIDs) > 0 && chatIDs[0] != "" {
		if err := c.limiter.Wait(ctx, chatIDs[0]); err != nil {
			return nil, err
		}
	}
	resp, err := c.breaker.Execute(func() (*apiResponse, error) {
		return c.doRequest(ctx, method, payload)
	})
	if resilience.Rejected(err) {
		return nil, fmt.Errorf("%w: %w", tg.ErrCircuitOpen, err)
	}
	return resp, err
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.config.BaseURL, c.config.Token.Value(), method)
}

func (c *Client) doRequest(ctx context.Context, method string, payload any) (*apiResponse, error) {
	req, err := c.newRequest(ctx, c.methodURL(method), payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", scrub.Error(err, c.config.Token))
	}
	defer resp.Body.Close()

	// Read one byte past the limit to detect overflow without a false positive.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > maxResponseSize {
		return nil, tg.ErrResponseTooLarge
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !apiResp.OK {
		if retryAfter := parseRetryAfter(&apiResp, resp); retryAfter > 0 {
			return nil, tg.NewAPIErrorWithRetry(method, apiResp.ErrorCode, apiResp.Description, retryAfter)
		}
		return nil, tg.NewAPIError(method, apiResp.ErrorCode, apiResp.Description)
	}

	return &apiResp, nil
}

// newRequest encodes payload as JSON, or as a streamed multipart body when it
// carries an upload such as a sticker PNG.
func (c *Client) newRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	mr, err := BuildMultipartRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if !mr.HasUploads() {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", scrub.Error(err, c.config.Token))
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	pr, pw := io.Pipe()
	enc := NewMultipartEncoder(pw)
	go func() {
		pw.CloseWithError(enc.EncodeAndClose(mr))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", scrub.Error(err, c.config.Token))
	}
	req.Header.Set("Content-Type", enc.ContentType())
	return req, nil
}

// withRetry retries fn on transient failures. Errors that outlive every
// attempt are wrapped with tg.ErrMaxRetries; the rest come back unchanged.
func withRetry[T any](c *Client, ctx context.Context, fn func() (T, error)) (T, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts: c.config.MaxRetries,
		BaseWait:    c.config.RetryBaseWait,
		MaxWait:     c.config.RetryMaxWait,
		Multiplier:  c.config.RetryFactor,
		Jitter:      0.2,
		Retryable:   isRetryable,
		RetryAfter:  retryAfter,
		Sleeper:     c.sleeper,
	}

	result, err := resilience.RetryWithCallback(ctx, cfg, fn, func(attempt int, err error, wait time.Duration) {
		c.logger.Debug("retrying request",
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
	})
	if err != nil && isRetryable(err) {
		var zero T
		return zero, fmt.Errorf("%w: %w", tg.ErrMaxRetries, err)
	}
	return result, err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, tg.ErrCircuitOpen) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *tg.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	return false
}

func retryAfter(err error) time.Duration {
	var apiErr *tg.APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

func extractChatID(chatID tg.ChatID) string {
	switch v := chatID.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func parseMessage(resp *apiResponse) (*tg.Message, error) {
	var msg tg.Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// isBreakerSuccess determines if an error should count as a circuit breaker failure.
// Only server errors (5xx) and network errors trip the breaker. 429 is rate
// pressure and is handled via retry_after.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *tg.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 400 && apiErr.Code < 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// parseRetryAfter extracts retry_after from JSON body (primary) or HTTP header (fallback).
func parseRetryAfter(apiResp *apiResponse, httpResp *http.Response) time.Duration {
	if apiResp.Parameters != nil && apiResp.Parameters.RetryAfter > 0 {
		return time.Duration(apiResp.Parameters.RetryAfter) * time.Second
	}

	if httpResp != nil {
		if retryHeader := httpResp.Header.Get("Retry-After"); retryHeader != "" {
			if seconds, err := strconv.Atoi(retryHeader); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return 0
}
