package lockingcache

import (
	"context"
	"sync"
	"time"
)

type cleaner struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (c *Cache[K, V]) startCleaner(interval time.Duration) *cleaner {
	ctx, cancel := context.WithCancel(context.Background())
	cl := &cleaner{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(cl.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanupTick(ctx)
			}
		}
	}()

	return cl
}

// stop cancels the cleaner and waits for an in-flight sweep to return.
func (cl *cleaner) stop() {
	cl.once.Do(func() {
		cl.cancel()
		<-cl.done
	})
}

// cleanupTick runs one scheduled sweep. A panic is logged and swallowed so
// the next tick still runs.
func (c *Cache[K, V]) cleanupTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "cleanup sweep panicked", "panic", r)
		}
	}()

	maxSize := c.maxSize.Load()
	if c.size.Load() <= maxSize {
		return
	}

	c.Cleanup(ctx, c.minSize.Load())

	if size := c.size.Load(); size > maxSize {
		c.observer.OnOverBudget(size, maxSize)
		c.logger.LogOverBudget(ctx, size, maxSize)
	}
}

// ShutdownCleanup stops the background cleaner, waiting for a running sweep
// to finish. It is safe to call more than once and a no-op when the cleaner
// was never started.
func (c *Cache[K, V]) ShutdownCleanup() {
	if c.cleaner != nil {
		c.cleaner.stop()
	}
}
