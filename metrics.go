package lockingcache

import (
	"sync/atomic"
	"time"
)

// MetricsObserver receives cache events.
// Implement this interface to integrate with monitoring systems like Prometheus
// (see package promobserver).
//
// Methods are called synchronously from the goroutine doing the work and
// must not block.
type MetricsObserver interface {
	// OnHit is called when Get finds an already loaded entry.
	OnHit()

	// OnLoad is called after each Loader.Load made by Get.
	// size is zero when err is non-nil.
	OnLoad(duration time.Duration, size int64, err error)

	// OnEvict is called after an entry is removed. err is the Loader.Remove
	// failure, if any; the entry is removed regardless.
	OnEvict(size int64, err error)

	// OnCleanup is called after each cleanup sweep that had work to do.
	OnCleanup(duration time.Duration, removed, pinned int)

	// OnOverBudget is called by the background cleaner when the cache is still
	// above maxSize after a sweep, typically because every entry is in use.
	OnOverBudget(size, maxSize int64)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnHit()                             {}
func (NoopMetricsObserver) OnLoad(time.Duration, int64, error) {}
func (NoopMetricsObserver) OnEvict(int64, error)               {}
func (NoopMetricsObserver) OnCleanup(time.Duration, int, int)  {}
func (NoopMetricsObserver) OnOverBudget(size, maxSize int64)   {}

// BasicMetricsObserver provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsObserver struct {
	Hits           atomic.Int64
	Loads          atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64
	LoadedBytes    atomic.Int64
	Evictions      atomic.Int64
	EvictErrors    atomic.Int64
	EvictedBytes   atomic.Int64
	Cleanups       atomic.Int64
	CleanupRemoved atomic.Int64
	CleanupPinned  atomic.Int64
	OverBudget     atomic.Int64
}

func (b *BasicMetricsObserver) OnHit() {
	b.Hits.Add(1)
}

func (b *BasicMetricsObserver) OnLoad(d time.Duration, size int64, err error) {
	b.Loads.Add(1)
	b.LoadTotalNanos.Add(d.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadedBytes.Add(size)
}

func (b *BasicMetricsObserver) OnEvict(size int64, err error) {
	b.Evictions.Add(1)
	b.EvictedBytes.Add(size)
	if err != nil {
		b.EvictErrors.Add(1)
	}
}

func (b *BasicMetricsObserver) OnCleanup(_ time.Duration, removed, pinned int) {
	b.Cleanups.Add(1)
	b.CleanupRemoved.Add(int64(removed))
	b.CleanupPinned.Add(int64(pinned))
}

func (b *BasicMetricsObserver) OnOverBudget(int64, int64) {
	b.OverBudget.Add(1)
}

// HitRatio returns hits / (hits + loads), or 0 if there was no traffic.
func (b *BasicMetricsObserver) HitRatio() float64 {
	hits := b.Hits.Load()
	total := hits + b.Loads.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
