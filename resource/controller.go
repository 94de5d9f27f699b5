// Package resource bounds how much work cache loaders do at once.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentLoads is the maximum number of loads running at once.
	// If 0, loads are not limited.
	MaxConcurrentLoads int64

	// IOLimitBytesPerSec is the maximum download throughput shared by all loads.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller hands out load slots and IO budget.
//
// A nil *Controller imposes no limits, so callers can hold one unconditionally.
type Controller struct {
	cfg Config

	// Concurrency
	loadSem     *semaphore.Weighted // nil if unlimited
	activeLoads atomic.Int64

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentLoads > 0 {
		c.loadSem = semaphore.NewWeighted(cfg.MaxConcurrentLoads)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireLoad reserves a load slot, blocking until one is free or ctx is done.
func (c *Controller) AcquireLoad(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.loadSem != nil {
		if err := c.loadSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.activeLoads.Add(1)
	return nil
}

// ReleaseLoad releases a slot obtained from AcquireLoad.
func (c *Controller) ReleaseLoad() {
	if c == nil {
		return
	}
	if c.loadSem != nil {
		c.loadSem.Release(1)
	}
	c.activeLoads.Add(-1)
}

// ActiveLoads returns the number of slots currently held. It feeds the
// active downloads gauge.
func (c *Controller) ActiveLoads() int64 {
	if c == nil {
		return 0
	}
	return c.activeLoads.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// bytes must not exceed IOBurst.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// IOBurst returns the largest single IO reservation, or 0 when IO is unlimited.
func (c *Controller) IOBurst() int {
	if c == nil || c.ioLimiter == nil {
		return 0
	}
	return c.ioLimiter.Burst()
}
