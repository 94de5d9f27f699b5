package lockingcache

import (
	"sync/atomic"

	"github.com/hupe1980/lockingcache/internal/rwlock"
)

type entryState uint8

const (
	stateUninitialized entryState = iota // placeholder, no value yet
	stateValid                           // value loaded, size > 0
	stateInvalidated                     // removed; never reused
)

func (s entryState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateValid:
		return "valid"
	case stateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// entry is the slot for one generation of a key.
//
// state, value and size may only be read while lock is held (read or write)
// and only be written while the write lock is held. lastAccess is atomic.
type entry[V any] struct {
	lock       rwlock.Mutex
	state      entryState
	value      V
	size       int64
	lastAccess atomic.Int64
}

func newEntry[V any]() *entry[V] {
	return &entry[V]{}
}

// newValidEntry builds an entry that is already loaded. It must not be
// published to other goroutines before it is fully constructed.
func newValidEntry[V any](value V, size int64, now int64) *entry[V] {
	e := &entry[V]{state: stateValid, value: value, size: size}
	e.lastAccess.Store(now)
	return e
}

func (e *entry[V]) mustHold() {
	precondition(e.lock.Held(), "entry accessed without holding its lock")
}

func (e *entry[V]) isUninitialized() bool {
	e.mustHold()
	return e.state == stateUninitialized
}

func (e *entry[V]) isValid() bool {
	e.mustHold()
	return e.state == stateValid
}

func (e *entry[V]) isInvalidated() bool {
	e.mustHold()
	return e.state == stateInvalidated
}

// setLoaded moves the entry from uninitialized to valid.
func (e *entry[V]) setLoaded(value V, size int64) {
	precondition(e.lock.WriteLocked(), "setLoaded requires the write lock")
	precondition(e.state == stateUninitialized, "setLoaded on "+e.state.String()+" entry")
	precondition(size > 0, "setLoaded with non-positive size")
	e.value = value
	e.size = size
	e.state = stateValid
}

// invalidate marks the entry removed. Callers read size first if they need
// to settle the cache total.
func (e *entry[V]) invalidate() {
	precondition(e.lock.WriteLocked(), "invalidate requires the write lock")
	var zero V
	e.value = zero
	e.size = 0
	e.state = stateInvalidated
}

func (e *entry[V]) touch(now int64) {
	e.lastAccess.Store(now)
}

// Handle is a read-locked view of a cached value returned by Cache.Get.
//
// While the Handle is open the value is stable and the entry cannot be
// evicted. Close must be called on every path, typically with defer:
//
//	h, err := c.Get(ctx, key)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//	use(h.Value())
//
// A Handle must not be used after Close; Value and Size panic if it is.
// A Handle may be shared between goroutines while open.
type Handle[V any] struct {
	e      *entry[V]
	closed atomic.Bool
}

func newHandle[V any](e *entry[V]) *Handle[V] {
	return &Handle[V]{e: e}
}

// Value returns the cached value.
func (h *Handle[V]) Value() V {
	precondition(!h.closed.Load(), "Value called on closed handle")
	precondition(h.e.isValid(), "handle entry is not valid")
	return h.e.value
}

// Size returns the size the Sizer reported for the value.
func (h *Handle[V]) Size() int64 {
	precondition(!h.closed.Load(), "Size called on closed handle")
	h.e.mustHold()
	return h.e.size
}

// Close releases the read lock. Closing twice returns ErrHandleClosed.
func (h *Handle[V]) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrHandleClosed
	}
	h.e.lock.RUnlock()
	return nil
}
