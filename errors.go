package lockingcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNilLoader is returned by New when no Loader is supplied.
	ErrNilLoader = errors.New("loader must not be nil")

	// ErrNilSizer is returned by New when no Sizer is supplied.
	ErrNilSizer = errors.New("sizer must not be nil")

	// ErrInvalidThreshold is returned when a min/max size is negative or min > max.
	ErrInvalidThreshold = errors.New("invalid size threshold")

	// ErrInvalidSize is returned when a Sizer reports a size <= 0 for a loaded value.
	ErrInvalidSize = errors.New("value size must be positive")

	// ErrHandleClosed is returned when a Handle is closed twice.
	ErrHandleClosed = errors.New("handle already closed")
)

// LoadError is returned by Get when the Loader fails for a key.
//
// The entry for Key stays uninitialized, so a later Get retries the load.
// The Loader's error can be accessed via errors.Unwrap.
type LoadError struct {
	Key   any
	cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %v: %v", e.Key, e.cause)
}

func (e *LoadError) Unwrap() error { return e.cause }

// precondition panics with a lock-discipline violation. These are programming
// errors in the cache itself or in a caller misusing a Handle.
func precondition(ok bool, msg string) {
	if !ok {
		panic("lockingcache: " + msg)
	}
}
