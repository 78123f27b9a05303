package engine

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the default time between background sync attempts.
const DefaultInterval = 5 * time.Minute

// StartPeriodic runs an attempt every interval until ctx is done or the
// returned stop function is called. stop waits for a running tick and
// returns the last status. A non-positive interval disables the ticker.
func (e *Engine) StartPeriodic(ctx context.Context, interval time.Duration) (stop func() Status) {
	if interval <= 0 {
		return e.Status
	}

	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = e.SyncNow(ctx)
			}
		}
	}()

	var once sync.Once
	return func() Status {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
		return e.Status()
	}
}
