package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides global and per-key rate limiting.
type RateLimiter struct {
	global    *rate.Limiter
	perKey    map[string]*keyLimiter
	mu        sync.RWMutex
	keyRPS    float64
	keyBurst  int
	keyLimit  func(key string) (float64, int, bool)
	maxKeys   int
	idleTTL   time.Duration
	cleanupCh chan struct{}
	closeOnce sync.Once
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // UnixNano
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	GlobalRPS   float64       // Global requests per second
	GlobalBurst int           // Global burst size
	KeyRPS      float64       // Per-key requests per second
	KeyBurst    int           // Per-key burst size
	IdleTTL     time.Duration // Drop per-key limiters unused for this long (0 = 10m)
	MaxKeys     int           // Evict the least recently used key beyond this many (0 = unbounded)

	// KeyLimit overrides KeyRPS and KeyBurst for the keys it reports ok for.
	KeyLimit func(key string) (rps float64, burst int, ok bool)
}

// DefaultRateLimiterConfig returns sensible defaults for Telegram.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GlobalRPS:   30, // Telegram ~30 msg/s global
		GlobalBurst: 10,
		KeyRPS:      1, // 1 msg/s per chat recommended
		KeyBurst:    3,
		IdleTTL:     10 * time.Minute,
		MaxKeys:     10000,
	}
}

// NewRateLimiter creates a new rate limiter. Call Close to stop its cleanup goroutine.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	rl := &RateLimiter{
		global:    rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		perKey:    make(map[string]*keyLimiter),
		keyRPS:    cfg.KeyRPS,
		keyBurst:  cfg.KeyBurst,
		keyLimit:  cfg.KeyLimit,
		maxKeys:   cfg.MaxKeys,
		idleTTL:   ttl,
		cleanupCh: make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Wait blocks until both global and per-key limits allow.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	if err := r.global.Wait(ctx); err != nil {
		return err
	}
	return r.getOrCreate(key).Wait(ctx)
}

// Allow returns true if the request is allowed without blocking.
// The per-key limiter is consulted first so a throttled key does not
// consume global tokens.
func (r *RateLimiter) Allow(key string) bool {
	if !r.getOrCreate(key).Allow() {
		return false
	}
	return r.global.Allow()
}

// Len returns the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.perKey)
}

// Close stops the cleanup goroutine.
func (r *RateLimiter) Close() {
	r.closeOnce.Do(func() {
		close(r.cleanupCh)
	})
}

func (r *RateLimiter) getOrCreate(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	r.mu.RLock()
	entry, exists := r.perKey[key]
	r.mu.RUnlock()

	if exists {
		entry.lastUsed.Store(now)
		return entry.limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists = r.perKey[key]; exists {
		entry.lastUsed.Store(now)
		return entry.limiter
	}

	if r.maxKeys > 0 && len(r.perKey) >= r.maxKeys {
		r.evictOldest()
	}

	rps, burst := r.keyRPS, r.keyBurst
	if r.keyLimit != nil {
		if kr, kb, ok := r.keyLimit(key); ok {
			rps, burst = kr, kb
		}
	}
	entry = &keyLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	entry.lastUsed.Store(now)
	r.perKey[key] = entry
	return entry.limiter
}

// evictOldest drops the least recently used key. Callers hold r.mu.
func (r *RateLimiter) evictOldest() {
	var oldestKey string
	var oldest int64
	for k, e := range r.perKey {
		if t := e.lastUsed.Load(); oldestKey == "" || t < oldest {
			oldestKey, oldest = k, t
		}
	}
	delete(r.perKey, oldestKey)
}

func (r *RateLimiter) cleanup() {
	ticker := time.NewTicker(r.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.cleanupCh:
			return
		}
	}
}

func (r *RateLimiter) evictIdle(now time.Time) {
	threshold := now.Add(-r.idleTTL).UnixNano()
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.perKey {
		if entry.lastUsed.Load() < threshold {
			delete(r.perKey, key)
		}
	}
}
