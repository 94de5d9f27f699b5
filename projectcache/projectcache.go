package projectcache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hupe1980/lockingcache"
	"github.com/hupe1980/lockingcache/blobstore"
	"github.com/hupe1980/lockingcache/resource"
	"github.com/jmgilman/go/errors"
)

// lockFileName guards the cache directory against a second process. It does
// not match the project directory pattern, so LoadAll ignores it.
const lockFileName = ".lock"

type options struct {
	logger   *lockingcache.Logger
	observer lockingcache.MetricsObserver
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger for the cache and the loader.
func WithLogger(l *lockingcache.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetricsObserver sets the cache metrics observer.
func WithMetricsObserver(m lockingcache.MetricsObserver) Option {
	return func(o *options) { o.observer = m }
}

// Observers exporting gauges (such as promobserver.Observer) implement these
// to read live values.
type (
	sizeTracker interface{ TrackSize(fn func() int64) }
	loadTracker interface{ TrackActiveLoads(fn func() int64) }
)

// ProjectCache is a disk cache of unpacked project archives.
type ProjectCache struct {
	cache   *lockingcache.Cache[Key, DirInfo]
	rc      *resource.Controller
	dirLock *flock.Flock
}

// Open prepares cfg.Dir and returns a cache primed with the projects already
// on disk.
//
// Open removes leftovers of interrupted downloads, derives the size
// thresholds, and starts the background cleaner. Call Close to stop the
// cleaner and release the directory lock.
func Open(ctx context.Context, cfg Config, store blobstore.BlobStore, optFns ...Option) (*ProjectCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "blob store must not be nil")
	}

	o := options{logger: lockingcache.NoopLogger()}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = lockingcache.NoopLogger()
	}
	logger := o.logger.With("component", "projectcache")

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "create cache directory %s", cfg.Dir)
	}

	// Lock the cache directory to prevent concurrent use by another executor.
	dirLock := flock.New(filepath.Join(cfg.Dir, lockFileName))
	if locked, err := dirLock.TryLock(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "lock cache directory")
	} else if !locked {
		return nil, ErrCacheDirLocked
	}
	opened := false
	defer func() {
		if !opened {
			_ = dirLock.Unlock()
		}
	}()

	rc := resource.NewController(resource.Config{
		MaxConcurrentLoads: cfg.MaxConcurrentDownloads,
		IOLimitBytesPerSec: cfg.DownloadBytesPerSec,
	})
	loader := NewLoader(cfg.Dir, store, rc, logger)

	if err := loader.removeStaging(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "remove stale downloads")
	}

	minSize, maxSize, err := cfg.thresholds(loader.fsys)
	if err != nil {
		return nil, err
	}

	cache, err := lockingcache.New[Key, DirInfo](loader, Sizer,
		lockingcache.WithCleanup(minSize, maxSize, time.Duration(cfg.CleanupInterval)),
		lockingcache.WithLogger(logger),
		lockingcache.WithMetricsObserver(o.observer),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "create cache")
	}

	if t, ok := o.observer.(sizeTracker); ok {
		t.TrackSize(cache.Size)
	}
	if t, ok := o.observer.(loadTracker); ok {
		t.TrackActiveLoads(rc.ActiveLoads)
	}

	if err := cache.Initialize(ctx); err != nil {
		_ = cache.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "project cache opened",
		"dir", cfg.Dir,
		"projects", cache.Len(),
		"size", cache.Size(),
		"min_size", minSize,
		"max_size", maxSize,
	)

	opened = true
	return &ProjectCache{
		cache:   cache,
		rc:      rc,
		dirLock: dirLock,
	}, nil
}

// Get returns the directory of a project version, downloading it if needed.
// The directory is not deleted while the Handle is open.
func (p *ProjectCache) Get(ctx context.Context, key Key) (*lockingcache.Handle[DirInfo], error) {
	return p.cache.Get(ctx, key)
}

// ActiveDownloads returns the number of archives being downloaded right now.
func (p *ProjectCache) ActiveDownloads() int64 {
	return p.rc.ActiveLoads()
}

// Cache exposes the underlying cache for size queries, manual cleanup and
// threshold changes.
func (p *ProjectCache) Cache() *lockingcache.Cache[Key, DirInfo] {
	return p.cache
}

// Close stops the background cleaner and releases the directory lock.
// Project directories stay on disk for the next Open.
func (p *ProjectCache) Close() error {
	if p == nil {
		return nil
	}
	_ = p.cache.Close()
	if err := p.dirLock.Unlock(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "unlock cache directory")
	}
	return nil
}
