package lockingcache

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Cache is a locking, loading, concurrent cache.
//
// Values are returned from Get as read-locked Handles. While a Handle is open
// the value is guaranteed to be valid, and many readers may hold the same
// value at once. Missing values are loaded with the Loader, at most once per
// entry even when many goroutines ask for the same key concurrently.
//
// Entries are only removed when no goroutine holds them, so eviction never
// pulls a value out from under a reader. The Sizer reports the size of each
// value; the running total drives the optional background cleaner, which
// keeps the cache approximately between a min and max size.
//
// There is no global lock: every entry carries its own lock, and the key
// map is a lock-striped xsync.MapOf.
type Cache[K comparable, V any] struct {
	entries *xsync.MapOf[K, *entry[V]]
	size    atomic.Int64

	loader Loader[K, V]
	sizer  Sizer[V]

	thresholdMu sync.Mutex // serializes SetMinSize/SetMaxSize validation
	minSize     atomic.Int64
	maxSize     atomic.Int64

	logger   *Logger
	observer MetricsObserver
	now      func() time.Time
	cleaner  *cleaner
}

// CleanupResult summarizes one Cleanup sweep.
type CleanupResult struct {
	// Removed is the number of entries taken out of the cache.
	Removed int
	// Pinned is the number of entries skipped because they were in use.
	Pinned int
	// SizeAfter is the cache size when the sweep finished.
	SizeAfter int64
}

// New creates a Cache that loads values with loader and measures them with sizer.
//
// Without WithCleanup no background goroutine is started.
func New[K comparable, V any](loader Loader[K, V], sizer Sizer[V], optFns ...Option) (*Cache[K, V], error) {
	if loader == nil {
		return nil, ErrNilLoader
	}
	if sizer == nil {
		return nil, ErrNilSizer
	}

	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if err := validateThresholds(o.minSize, o.maxSize); err != nil {
		return nil, err
	}

	var mapOpts []func(*xsync.MapConfig)
	if o.presize > 0 {
		mapOpts = append(mapOpts, xsync.WithPresize(o.presize))
	}

	c := &Cache[K, V]{
		entries:  xsync.NewMapOf[K, *entry[V]](mapOpts...),
		loader:   loader,
		sizer:    sizer,
		logger:   o.logger,
		observer: o.observer,
		now:      o.now,
	}
	c.minSize.Store(o.minSize)
	c.maxSize.Store(o.maxSize)

	if o.cleanupInterval > 0 {
		c.cleaner = c.startCleaner(o.cleanupInterval)
	}
	return c, nil
}

func validateThresholds(minSize, maxSize int64) error {
	switch {
	case minSize < 0:
		return fmt.Errorf("%w: minSize %d cannot be negative", ErrInvalidThreshold, minSize)
	case maxSize < 0:
		return fmt.Errorf("%w: maxSize %d cannot be negative", ErrInvalidThreshold, maxSize)
	case minSize > maxSize:
		return fmt.Errorf("%w: minSize %d must be less than or equal to maxSize %d", ErrInvalidThreshold, minSize, maxSize)
	}
	return nil
}

// Size returns the approximate total size of all loaded entries.
//
// The total is updated just after each load or removal, not atomically with
// the key map, so it may briefly lag concurrent operations.
func (c *Cache[K, V]) Size() int64 {
	return c.size.Load()
}

// Len returns the number of entries, including placeholders still loading.
func (c *Cache[K, V]) Len() int {
	return c.entries.Size()
}

// MinSize returns the threshold at which cleanup stops.
func (c *Cache[K, V]) MinSize() int64 {
	return c.minSize.Load()
}

// MaxSize returns the threshold at which background cleanup starts.
func (c *Cache[K, V]) MaxSize() int64 {
	return c.maxSize.Load()
}

// SetMinSize sets the threshold at which cleanup stops.
// It must be non-negative and no greater than MaxSize.
func (c *Cache[K, V]) SetMinSize(n int64) error {
	c.thresholdMu.Lock()
	defer c.thresholdMu.Unlock()
	if err := validateThresholds(n, c.maxSize.Load()); err != nil {
		return err
	}
	c.minSize.Store(n)
	return nil
}

// SetMaxSize sets the threshold at which background cleanup starts.
// It must be non-negative and no less than MinSize.
func (c *Cache[K, V]) SetMaxSize(n int64) error {
	c.thresholdMu.Lock()
	defer c.thresholdMu.Unlock()
	if err := validateThresholds(c.minSize.Load(), n); err != nil {
		return err
	}
	c.maxSize.Store(n)
	return nil
}

// Get returns the value for key as a read-locked Handle, loading it first if
// needed. The caller must Close the Handle to release the lock; until then
// the entry cannot be evicted.
//
// If the Loader fails, Get returns a *LoadError and the key stays unloaded,
// so the next Get tries again. ctx is passed to the Loader and checked
// between retries; it does not interrupt a load that is already running.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (*Handle[V], error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e, _ := c.entries.LoadOrCompute(key, newEntry[V])

		e.lock.RLock()
		if e.isInvalidated() {
			// Removed between lookup and lock. Resolve the key again.
			e.lock.RUnlock()
			continue
		}
		if e.isValid() {
			return c.hit(e), nil
		}

		// Uninitialized. The read lock cannot be upgraded, so release it and
		// try for the write lock, then re-check the state.
		e.lock.RUnlock()
		if !e.lock.TryLock() {
			// Another goroutine is loading or removing this entry.
			runtime.Gosched()
			continue
		}

		if e.isInvalidated() {
			e.lock.Unlock()
			continue
		}
		if e.isValid() {
			// Someone else loaded it while we were between locks.
			e.lock.Downgrade()
			return c.hit(e), nil
		}
		return c.load(ctx, key, e)
	}
}

func (c *Cache[K, V]) hit(e *entry[V]) *Handle[V] {
	e.touch(c.now().UnixNano())
	c.observer.OnHit()
	return newHandle(e)
}

// load runs with e write-locked and uninitialized. On success the write lock
// is downgraded to the read lock owned by the returned Handle; on failure or
// panic it is released.
func (c *Cache[K, V]) load(ctx context.Context, key K, e *entry[V]) (*Handle[V], error) {
	downgraded := false
	defer func() {
		if !downgraded {
			e.lock.Unlock()
		}
	}()

	start := c.now()
	value, err := c.loader.Load(ctx, key)
	var size int64
	if err == nil {
		size = c.sizer.Size(value)
		if size <= 0 {
			err = fmt.Errorf("%w: got %d", ErrInvalidSize, size)
		}
	}
	elapsed := c.now().Sub(start)

	if err != nil {
		c.observer.OnLoad(elapsed, 0, err)
		c.logger.LogLoad(ctx, key, 0, elapsed, err)
		return nil, &LoadError{Key: key, cause: err}
	}

	e.setLoaded(value, size)
	e.touch(c.now().UnixNano())
	e.lock.Downgrade()
	downgraded = true
	c.size.Add(size)

	c.observer.OnLoad(elapsed, size, nil)
	c.logger.LogLoad(ctx, key, size, elapsed, nil)
	return newHandle(e), nil
}

// TryRemove removes key if no goroutine is using it.
//
// It returns true if key is absent afterwards, either because it was never
// cached or because this call removed it. It returns false without waiting
// if the entry is held by a reader or is being loaded.
//
// Loader.Remove is called for loaded values; its error is logged and the
// entry is removed anyway.
func (c *Cache[K, V]) TryRemove(ctx context.Context, key K) bool {
	for {
		e, ok := c.entries.Load(key)
		if !ok {
			return true
		}
		if !e.lock.TryLock() {
			return false
		}
		if e.isInvalidated() {
			// A stale generation that another remover finished with.
			e.lock.Unlock()
			continue
		}
		c.remove(ctx, key, e)
		return true
	}
}

func (c *Cache[K, V]) remove(ctx context.Context, key K, e *entry[V]) {
	defer e.lock.Unlock()

	c.deleteEntry(key, e)

	size := e.size
	var err error
	if e.isValid() {
		err = c.releaseValue(ctx, key, e.value)
	}
	c.size.Add(-size)
	e.invalidate()

	if size > 0 {
		c.observer.OnEvict(size, err)
		c.logger.LogEvict(ctx, key, size, err)
	}
}

// deleteEntry removes key from the map only while it still maps to e, so a
// newer generation inserted by a concurrent Get survives.
func (c *Cache[K, V]) deleteEntry(key K, e *entry[V]) bool {
	deleted := false
	c.entries.Compute(key, func(old *entry[V], loaded bool) (*entry[V], bool) {
		if !loaded {
			return nil, true
		}
		if old != e {
			return old, false
		}
		deleted = true
		return nil, true
	})
	return deleted
}

// releaseValue calls Loader.Remove, turning a panic into an error so that
// map and size bookkeeping always completes.
func (c *Cache[K, V]) releaseValue(ctx context.Context, key K, value V) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader remove panicked: %v", r)
		}
	}()
	return c.loader.Remove(ctx, key, value)
}

// Cleanup evicts least recently used entries until Size is at or below
// targetSize.
//
// Entries in use are skipped, never waited for, so the sweep may finish above
// targetSize. It stops early if ctx is done.
func (c *Cache[K, V]) Cleanup(ctx context.Context, targetSize int64) CleanupResult {
	if size := c.size.Load(); size <= targetSize {
		return CleanupResult{SizeAfter: size}
	}
	start := c.now()

	type candidate struct {
		key        K
		lastAccess int64
	}
	var candidates []candidate
	c.entries.Range(func(k K, e *entry[V]) bool {
		candidates = append(candidates, candidate{key: k, lastAccess: e.lastAccess.Load()})
		return true
	})
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(a.lastAccess, b.lastAccess)
	})

	var res CleanupResult
	for _, cand := range candidates {
		if c.size.Load() <= targetSize || ctx.Err() != nil {
			break
		}
		if c.TryRemove(ctx, cand.key) {
			res.Removed++
		} else {
			res.Pinned++
			c.logger.DebugContext(ctx, "entry in use, skipped", "key", cand.key)
		}
	}
	res.SizeAfter = c.size.Load()

	elapsed := c.now().Sub(start)
	c.observer.OnCleanup(elapsed, res.Removed, res.Pinned)
	c.logger.LogCleanup(ctx, targetSize, res, elapsed)
	return res
}

// Initialize primes the cache with Loader.LoadAll.
//
// Keys already present are left untouched. Values whose size is not positive
// are skipped with a warning.
//
// Initialize must not run concurrently with any other cache operation; the
// running size total is not accurate otherwise.
func (c *Cache[K, V]) Initialize(ctx context.Context) error {
	values, err := c.loader.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	now := c.now().UnixNano()
	loaded := 0
	for k, v := range values {
		size := c.sizer.Size(v)
		if size <= 0 {
			c.logger.WarnContext(ctx, "skipping initial value with non-positive size", "key", k, "size", size)
			continue
		}
		_, existed := c.entries.LoadOrCompute(k, func() *entry[V] {
			return newValidEntry(v, size, now)
		})
		if existed {
			continue
		}
		c.size.Add(size)
		loaded++
	}

	c.logger.InfoContext(ctx, "cache initialized", "entries", loaded, "size", c.size.Load())
	return nil
}
