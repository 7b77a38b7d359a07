package resilience_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/circlebot/internal/resilience"
)

func TestNewBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	var logs bytes.Buffer
	cfg := resilience.DefaultBreakerConfig("test")
	cfg.Threshold = 2
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	cb := resilience.NewBreaker[int](cfg)

	for range 2 {
		_, _ = cb.Execute(func() (int, error) { return 0, errors.New("boom") })
	}

	assert.True(t, resilience.IsOpen(cb))
	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, logs.String(), "circuit breaker state changed")
	assert.Contains(t, logs.String(), "from=closed to=open")
}

func TestNewBreaker_IsSuccessfulKeepsCountsClean(t *testing.T) {
	errClient := errors.New("bad request")
	cfg := resilience.DefaultBreakerConfig("filtered")
	cfg.Threshold = 1
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errClient) }
	cb := resilience.NewBreaker[int](cfg)

	for range 5 {
		_, _ = cb.Execute(func() (int, error) { return 0, errClient })
	}
	assert.False(t, resilience.IsOpen(cb))

	_, _ = cb.Execute(func() (int, error) { return 0, errors.New("server") })
	assert.True(t, resilience.IsOpen(cb))
}

func TestNewBreaker_CustomReadyToTrip(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig("never")
	cfg.ReadyToTrip = func(gobreaker.Counts) bool { return false }
	cb := resilience.NewBreaker[int](cfg)

	for range 50 {
		_, _ = cb.Execute(func() (int, error) { return 0, errors.New("x") })
	}
	assert.False(t, resilience.IsOpen(cb))
}

func TestNewBreaker_TripsOnRatio(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig("ratio")
	cfg.Threshold = 100
	cfg.MinRequests = 4
	cfg.FailureRatio = 0.5
	cb := resilience.NewBreaker[int](cfg)

	_, _ = cb.Execute(func() (int, error) { return 0, nil })
	_, _ = cb.Execute(func() (int, error) { return 0, errors.New("x") })
	_, _ = cb.Execute(func() (int, error) { return 0, nil })
	assert.False(t, resilience.IsOpen(cb))

	_, _ = cb.Execute(func() (int, error) { return 0, errors.New("x") })
	assert.True(t, resilience.IsOpen(cb))
}

func TestRateLimiter_AllowPerKey(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		GlobalRPS:   1000,
		GlobalBurst: 1000,
		KeyRPS:      0.001,
		KeyBurst:    2,
	})
	defer rl.Close()

	assert.True(t, rl.Allow("chat-a"))
	assert.True(t, rl.Allow("chat-a"))
	assert.False(t, rl.Allow("chat-a"), "burst exhausted")
	assert.True(t, rl.Allow("chat-b"), "other keys are independent")
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiter_GlobalLimit(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		GlobalRPS:   0.001,
		GlobalBurst: 1,
		KeyRPS:      1000,
		KeyBurst:    1000,
	})
	defer rl.Close()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("b"))
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		GlobalRPS:   1000,
		GlobalBurst: 1000,
		KeyRPS:      0.001,
		KeyBurst:    1,
	})
	defer rl.Close()

	require.NoError(t, rl.Wait(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "k"))
}

func TestRateLimiter_KeyLimitOverride(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		GlobalRPS:   1000,
		GlobalBurst: 1000,
		KeyRPS:      0.001,
		KeyBurst:    3,
		KeyLimit: func(key string) (float64, int, bool) {
			if strings.HasPrefix(key, "-") {
				return 0.001, 1, true
			}
			return 0, 0, false
		},
	})
	defer rl.Close()

	assert.True(t, rl.Allow("-100"))
	assert.False(t, rl.Allow("-100"), "group keys get the override burst")
	for range 3 {
		assert.True(t, rl.Allow("42"))
	}
	assert.False(t, rl.Allow("42"))
}

func TestRateLimiter_MaxKeysEvictsOldest(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		GlobalRPS:   1000,
		GlobalBurst: 1000,
		KeyRPS:      0.001,
		KeyBurst:    1,
		MaxKeys:     2,
	})
	defer rl.Close()

	assert.True(t, rl.Allow("a"))
	time.Sleep(time.Millisecond)
	assert.True(t, rl.Allow("b"))
	time.Sleep(time.Millisecond)
	assert.True(t, rl.Allow("c"))
	assert.Equal(t, 2, rl.Len())

	assert.True(t, rl.Allow("a"), "evicted key starts with a fresh burst")
}

func TestRateLimiter_CloseIdempotent(t *testing.T) {
	rl := resilience.NewRateLimiter(resilience.DefaultRateLimiterConfig())
	rl.Close()
	rl.Close()
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	cfg := resilience.RetryConfig{MaxAttempts: 3, BaseWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
	var calls int

	got, err := resilience.Retry(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	cfg := resilience.RetryConfig{MaxAttempts: 2, BaseWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}
	var attempts []int
	wantErr := errors.New("down")

	_, err := resilience.RetryWithCallback(context.Background(), cfg,
		func() (int, error) { return 0, wantErr },
		func(attempt int, err error, wait time.Duration) {
			attempts = append(attempts, attempt)
		},
	)

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetry_HonoursRetryAfter(t *testing.T) {
	cfg := resilience.RetryConfig{
		MaxAttempts: 1,
		BaseWait:    time.Hour,
		MaxWait:     time.Hour,
		Multiplier:  2,
		RetryAfter:  func(error) time.Duration { return 5 * time.Millisecond },
	}
	var waited time.Duration

	_, _ = resilience.RetryWithCallback(context.Background(), cfg,
		func() (int, error) { return 0, errors.New("429") },
		func(_ int, _ error, wait time.Duration) { waited = wait },
	)

	assert.Equal(t, 5*time.Millisecond, waited)
}

func TestRetry_NonRetryableReturnsAtOnce(t *testing.T) {
	errFatal := errors.New("forbidden")
	sleeper := &recordingSleeper{}
	cfg := resilience.RetryConfig{
		MaxAttempts: 5,
		BaseWait:    time.Second,
		MaxWait:     time.Second,
		Multiplier:  2,
		Retryable:   func(err error) bool { return !errors.Is(err, errFatal) },
		Sleeper:     sleeper,
	}
	var calls int

	_, err := resilience.Retry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errFatal
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.waits)
}

func TestRetry_UsesSleeper(t *testing.T) {
	sleeper := &recordingSleeper{}
	cfg := resilience.RetryConfig{MaxAttempts: 3, BaseWait: time.Second, MaxWait: 3 * time.Second, Multiplier: 2, Sleeper: sleeper}

	_, err := resilience.Retry(context.Background(), cfg, func() (int, error) { return 0, errors.New("down") })

	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeper.waits)
}

func TestBackoff_JitterBounds(t *testing.T) {
	cfg := resilience.RetryConfig{BaseWait: time.Second, MaxWait: 30 * time.Second, Multiplier: 2, Jitter: 0.2}

	for range 20 {
		d := resilience.Backoff(cfg, 2)
		assert.InDelta(t, float64(4*time.Second), float64(d), float64(800*time.Millisecond))
	}
	assert.LessOrEqual(t, resilience.Backoff(cfg, 20), 36*time.Second)
}

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := resilience.DefaultRetryConfig()

	_, err := resilience.Retry(ctx, cfg, func() (int, error) { return 0, errors.New("x") })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSingleFlight_DeduplicatesConcurrentCalls(t *testing.T) {
	var sf resilience.SingleFlight[[]byte]
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([][]byte, 5)
	for i := range results {
		wg.Go(func() {
			results[i], _ = sf.Do("file-1", func() ([]byte, error) {
				calls.Add(1)
				<-release
				return []byte("data"), nil
			})
		})
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	for _, r := range results {
		assert.Equal(t, []byte("data"), r)
	}
}

func TestSingleFlight_DoContext(t *testing.T) {
	var sf resilience.SingleFlight[int]
	var calls atomic.Int32
	gate := make(chan struct{})
	fn := func() (int, error) {
		calls.Add(1)
		<-gate
		return 42, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := sf.DoContext(ctx, "k", fn)
		first <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan int, 1)
	go func() {
		v, _ := sf.DoContext(context.Background(), "k", fn)
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	close(gate)
	assert.Equal(t, 42, <-second)
	assert.Equal(t, int32(1), calls.Load())
}
