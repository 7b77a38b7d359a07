package syncutil_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/circlebot/internal/syncutil"
)

func TestLimiter_RunsAndWaits(t *testing.T) {
	lim := syncutil.NewLimiter(4)
	var counter atomic.Int32

	for range 10 {
		require.NoError(t, lim.Go(context.Background(), func() {
			time.Sleep(5 * time.Millisecond)
			counter.Add(1)
		}))
	}

	lim.Wait()
	assert.Equal(t, int32(10), counter.Load())
	assert.Zero(t, lim.InFlight())
}

func TestLimiter_Bound(t *testing.T) {
	lim := syncutil.NewLimiter(2)
	var cur, peak atomic.Int32

	for range 12 {
		require.NoError(t, lim.Go(context.Background(), func() {
			n := cur.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
		}))
	}

	lim.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 2, lim.Cap())
}

func TestLimiter_GoHonorsContext(t *testing.T) {
	lim := syncutil.NewLimiter(1)
	release := make(chan struct{})
	require.NoError(t, lim.Go(context.Background(), func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var ran atomic.Bool
	err := lim.Go(ctx, func() { ran.Store(true) })

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
	lim.Wait()
	assert.False(t, ran.Load())
}

func TestLimiter_TryGo(t *testing.T) {
	lim := syncutil.NewLimiter(1)
	release := make(chan struct{})

	assert.True(t, lim.TryGo(func() { <-release }))
	assert.False(t, lim.TryGo(func() {}))
	assert.Equal(t, 1, lim.InFlight())

	close(release)
	lim.Wait()
	assert.True(t, lim.TryGo(func() {}))
	lim.Wait()
}

func TestNewLimiter_MinimumOne(t *testing.T) {
	assert.Equal(t, 1, syncutil.NewLimiter(0).Cap())
	assert.Equal(t, 1, syncutil.NewLimiter(-3).Cap())
}
