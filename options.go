package lockingcache

import "time"

type options struct {
	minSize         int64
	maxSize         int64
	cleanupInterval time.Duration
	presize         int
	logger          *Logger
	observer        MetricsObserver
	now             func() time.Time
}

func defaultOptions() options {
	return options{
		logger:   NoopLogger(),
		observer: NoopMetricsObserver{},
		now:      time.Now,
	}
}

// Option configures a Cache.
type Option func(*options)

// WithCleanup enables the background cleaner.
//
// Every interval, if the cache size exceeds maxSize (the high-water mark), the
// cleaner evicts least recently used entries that are not in use until the
// size is at or below minSize (the low-water mark).
//
// An interval <= 0 disables the cleaner; Cleanup can still be called manually.
// New returns ErrInvalidThreshold if minSize < 0, maxSize < 0 or minSize > maxSize.
func WithCleanup(minSize, maxSize int64, interval time.Duration) Option {
	return func(o *options) {
		o.minSize = minSize
		o.maxSize = maxSize
		o.cleanupInterval = interval
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsObserver sets the metrics observer.
// If nil is passed, NoopMetricsObserver is used.
func WithMetricsObserver(m MetricsObserver) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsObserver{}
		}
		o.observer = m
	}
}

// WithClock replaces time.Now for last-access bookkeeping and durations.
// Mostly useful in tests that need a deterministic eviction order.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now == nil {
			now = time.Now
		}
		o.now = now
	}
}

// WithPresize sizes the key map for about n entries up front, avoiding
// rehashing while a cold cache fills. Values <= 0 keep the default.
func WithPresize(n int) Option {
	return func(o *options) {
		o.presize = n
	}
}
