package lockingcache

import "context"

// Loader loads, bulk-loads and releases cached values.
//
// Implementations must be safe for concurrent use: Load is called for
// different keys in parallel, but never twice in parallel for the same
// entry.
type Loader[K comparable, V any] interface {
	// Load produces the value for key. It runs while the entry's write lock is
	// held, so other readers of the same key wait for it. It may block on I/O.
	Load(ctx context.Context, key K) (V, error)

	// LoadAll returns the initial key/value set. Used only by Initialize.
	LoadAll(ctx context.Context) (map[K]V, error)

	// Remove releases any external state owned by value (files, handles).
	// It runs after the entry left the map and while no reader holds it.
	// Errors are logged, never returned to cache callers.
	Remove(ctx context.Context, key K, value V) error
}

// Sizer reports the size of a loaded value in caller-defined units.
// Sizes must be positive.
type Sizer[V any] interface {
	Size(value V) int64
}

// SizerFunc adapts an ordinary function to the Sizer interface.
type SizerFunc[V any] func(value V) int64

// Size calls f(value).
func (f SizerFunc[V]) Size(value V) int64 { return f(value) }
