package syncutil

import (
	"context"
	"sync"
)

// Limiter runs tasks in their own goroutines with at most a fixed number in
// flight.
type Limiter struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewLimiter returns a Limiter allowing n concurrent tasks. n below 1 is
// treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Go blocks until a slot is free, then runs fn in a new goroutine. It returns
// ctx.Err() without running fn if ctx ends first.
func (l *Limiter) Go(ctx context.Context, fn func()) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.wg.Add(1)
	go func() {
		defer func() {
			<-l.slots
			l.wg.Done()
		}()
		fn()
	}()
	return nil
}

// TryGo runs fn like Go but reports false instead of waiting when every slot
// is taken.
func (l *Limiter) TryGo(fn func()) bool {
	select {
	case l.slots <- struct{}{}:
	default:
		return false
	}

	l.wg.Add(1)
	go func() {
		defer func() {
			<-l.slots
			l.wg.Done()
		}()
		fn()
	}()
	return true
}

// InFlight returns the number of running tasks.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

// Cap returns the concurrency bound.
func (l *Limiter) Cap() int {
	return cap(l.slots)
}

// Wait blocks until every started task has returned.
func (l *Limiter) Wait() {
	l.wg.Wait()
}
