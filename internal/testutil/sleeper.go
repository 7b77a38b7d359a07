package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/prilive-com/circlebot/internal/resilience"
)

var _ resilience.Sleeper = (*FakeSleeper)(nil)

// FakeSleeper records requested waits and returns at once, so retry and
// backoff timing can be asserted without real delays.
type FakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

// Sleep records d unless ctx is already done.
func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.calls = append(f.calls, d)
	f.mu.Unlock()
	return nil
}

func (f *FakeSleeper) Calls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.calls...)
}

func (f *FakeSleeper) CallCount() int {
	return len(f.Calls())
}

// CallAt returns the i-th recorded wait, or 0 when there is none.
func (f *FakeSleeper) CallAt(i int) time.Duration {
	calls := f.Calls()
	if i < 0 || i >= len(calls) {
		return 0
	}
	return calls[i]
}

// LastCall returns the most recent wait, or 0.
func (f *FakeSleeper) LastCall() time.Duration {
	return f.CallAt(f.CallCount() - 1)
}
