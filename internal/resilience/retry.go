package resilience

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// Sleeper waits between attempts. Tests swap in a recording fake.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// DefaultSleeper waits on a timer and wakes early when ctx ends.
var DefaultSleeper Sleeper = timerSleeper{}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts int           // Retries after the first call (0 = no retries)
	BaseWait    time.Duration // Wait before the first retry
	MaxWait     time.Duration // Upper bound for a single wait
	Multiplier  float64       // Backoff multiplier, 2.0 doubles every attempt
	Jitter      float64       // Symmetric jitter factor (0.0-1.0)

	// Retryable filters errors worth another attempt. Nil retries every error.
	Retryable func(error) bool
	// RetryAfter returns a server-mandated wait for err, or 0 to use backoff.
	RetryAfter func(error) time.Duration
	// Sleeper waits between attempts. Nil uses a timer.
	Sleeper Sleeper
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseWait:    time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Retry executes fn with retries according to cfg.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	return RetryWithCallback(ctx, cfg, fn, nil)
}

// RetryWithCallback executes fn with retries and calls onRetry before each
// wait. A non-retryable error is returned as soon as it occurs; otherwise the
// last error is returned once the attempts are used up.
func RetryWithCallback[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func() (T, error),
	onRetry func(attempt int, err error, wait time.Duration),
) (T, error) {
	var zero T
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = DefaultSleeper
	}

	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}
		if attempt >= cfg.MaxAttempts {
			return zero, err
		}

		var wait time.Duration
		if cfg.RetryAfter != nil {
			wait = cfg.RetryAfter(err)
		}
		if wait <= 0 {
			wait = Backoff(cfg, attempt)
		}
		if onRetry != nil {
			onRetry(attempt+1, err, wait)
		}
		if err := sleeper.Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

// Backoff returns the wait before retry number attempt+1: BaseWait grown by
// Multiplier per attempt, capped at MaxWait, with crypto/rand jitter.
func Backoff(cfg RetryConfig, attempt int) time.Duration {
	wait := float64(cfg.BaseWait)
	for range attempt {
		wait *= cfg.Multiplier
		if wait > float64(cfg.MaxWait) {
			break
		}
	}
	if cfg.MaxWait > 0 && wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	if cfg.Jitter > 0 {
		jitterRange := wait * cfg.Jitter
		if span := int64(jitterRange * 2); span > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(span))
			if err == nil {
				wait += float64(n.Int64()) - jitterRange
			}
		}
	}

	return time.Duration(wait)
}

// SingleFlight prevents duplicate concurrent calls for the same key.
// Callers sharing a key receive the same result value.
type SingleFlight[T any] struct {
	mu    sync.Mutex
	calls map[string]*call[T]
}

type call[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Do executes fn only once for concurrent calls with the same key.
func (sf *SingleFlight[T]) Do(key string, fn func() (T, error)) (T, error) {
	sf.mu.Lock()
	if sf.calls == nil {
		sf.calls = make(map[string]*call[T])
	}

	if c, ok := sf.calls[key]; ok {
		sf.mu.Unlock()
		<-c.done
		return c.result, c.err
	}

	c := &call[T]{done: make(chan struct{})}
	sf.calls[key] = c
	sf.mu.Unlock()

	c.result, c.err = fn()
	close(c.done)

	sf.mu.Lock()
	delete(sf.calls, key)
	sf.mu.Unlock()

	return c.result, c.err
}

// DoContext is Do, except the caller stops waiting when ctx ends. fn keeps
// running for the remaining callers, so it must not depend on ctx.
func (sf *SingleFlight[T]) DoContext(ctx context.Context, key string, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := sf.Do(key, fn)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
