package offlinecache

import (
	"context"
	"time"
)

// StartSweeper begins the periodic expiry sweep of the memory tier. The
// timer is re-armed only after a sweep finishes, so sweeps never overlap
// and late ticks are skipped rather than queued. Starting an already
// running sweeper is a no-op.
func (c *Cache[V]) StartSweeper(ctx context.Context) {
	c.sweepLock.Lock()
	defer c.sweepLock.Unlock()

	if c.sweepStop != nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.sweepStop = stop
	c.sweepDone = done

	go func() {
		defer close(done)

		t := time.NewTimer(c.cfg.SweepInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				removed := c.Sweep()
				if removed > 0 {
					c.logger.DebugContext(ctx, "expiry sweep removed entries", "count", removed)
				}
				_ = t.Reset(c.cfg.SweepInterval)
			}
		}
	}()
}

// StopSweeper stops the periodic sweep and waits for an in-flight sweep
// to finish. Safe to call when the sweeper was never started.
func (c *Cache[V]) StopSweeper() {
	c.sweepLock.Lock()
	defer c.sweepLock.Unlock()

	if c.sweepStop == nil {
		return
	}

	close(c.sweepStop)
	<-c.sweepDone
	c.sweepStop = nil
	c.sweepDone = nil
}

// Sweep removes every expired entry from the memory tier and reports how
// many were removed. It runs on the sweeper's schedule but can be called
// directly, which tests do to step the clock deterministically.
func (c *Cache[V]) Sweep() int {
	now := c.now()

	c.lock.Lock()
	defer c.lock.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.expirations.Add(uint64(removed))
	}

	return removed
}
