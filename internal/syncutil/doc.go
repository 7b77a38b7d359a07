// Package syncutil provides concurrency helpers for circlebot.
//
// Limiter bounds how many tasks run at once and tracks every task it
// started so shutdown can wait for them:
//
//	lim := syncutil.NewLimiter(8)
//	if err := lim.Go(ctx, func() {
//	    // work
//	}); err != nil {
//	    // ctx ended before a slot was free
//	}
//	lim.Wait()
package syncutil
