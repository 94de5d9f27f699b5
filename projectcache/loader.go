package projectcache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/lockingcache"
	"github.com/hupe1980/lockingcache/blobstore"
	vfs "github.com/hupe1980/lockingcache/internal/fs"
	"github.com/hupe1980/lockingcache/resource"
	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"
)

// stagingPrefix marks directories and archives that are still being downloaded.
const stagingPrefix = "_temp."

var projectDirPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// Loader downloads and unpacks project archives into a cache directory.
// It implements lockingcache.Loader.
type Loader struct {
	dir    string
	store  blobstore.BlobStore
	rc     *resource.Controller
	logger *lockingcache.Logger
	fsys   vfs.FileSystem
}

// NewLoader creates a Loader for dir. rc may be nil for no limits.
func NewLoader(dir string, store blobstore.BlobStore, rc *resource.Controller, logger *lockingcache.Logger) *Loader {
	if logger == nil {
		logger = lockingcache.NoopLogger()
	}
	return &Loader{
		dir:    dir,
		store:  store,
		rc:     rc,
		logger: logger,
		fsys:   vfs.Default,
	}
}

// Load returns the directory for key, downloading and unpacking the archive
// if it is not on disk yet.
func (l *Loader) Load(ctx context.Context, key Key) (DirInfo, error) {
	dir := filepath.Join(l.dir, key.String())

	fi, err := l.fsys.Stat(dir)
	switch {
	case err == nil && fi.IsDir():
		l.logger.WarnContext(ctx, "project directory already exists", "dir", dir)
		size, err := dirSizeAndSave(l.fsys, dir)
		if err != nil {
			return DirInfo{}, errors.Wrapf(err, errors.CodeInternal, "size project directory %s", dir)
		}
		return DirInfo{Key: key, Dir: dir, Size: size}, nil
	case err == nil:
		return DirInfo{}, errors.Newf(errors.CodeConflict, "%s is not a valid project directory", dir)
	case !errors.Is(err, os.ErrNotExist):
		return DirInfo{}, errors.Wrapf(err, errors.CodeInternal, "stat project directory %s", dir)
	}

	return l.download(ctx, key, dir)
}

func (l *Loader) download(ctx context.Context, key Key, dir string) (DirInfo, error) {
	if err := l.rc.AcquireLoad(ctx); err != nil {
		return DirInfo{}, errors.Wrap(err, errors.CodeTimeout, "wait for download slot")
	}
	defer l.rc.ReleaseLoad()

	start := time.Now()

	staging := filepath.Join(l.dir, stagingPrefix+key.String()+"."+uuid.NewString())
	if err := l.fsys.MkdirAll(staging, 0o755); err != nil {
		return DirInfo{}, errors.Wrap(err, errors.CodeInternal, "create staging directory")
	}
	installed := false
	defer func() {
		if !installed {
			_ = l.fsys.RemoveAll(staging)
		}
	}()

	archive := staging + ".zip"
	defer func() { _ = l.fsys.Remove(archive) }()

	if err := l.fetch(ctx, key.archiveName(), archive); err != nil {
		return DirInfo{}, err
	}
	if err := unzip(l.fsys, archive, staging); err != nil {
		return DirInfo{}, errors.Wrapf(err, errors.CodeInvalidInput, "unpack project %s", key)
	}
	size, err := dirSizeAndSave(l.fsys, staging)
	if err != nil {
		return DirInfo{}, errors.Wrapf(err, errors.CodeInternal, "size project %s", key)
	}

	// The entry's write lock keeps other goroutines out, so an existing
	// directory here means another process shares the cache directory.
	if _, err := l.fsys.Stat(dir); err == nil {
		l.logger.ErrorContext(ctx, "project appeared during download; is another executor sharing the cache?", "project", key.String())
		return DirInfo{}, errors.Newf(errors.CodeConflict, "project %s already exists in the cache directory", key)
	}
	if err := l.fsys.Rename(staging, dir); err != nil {
		return DirInfo{}, errors.Wrapf(err, errors.CodeInternal, "install project %s", key)
	}
	installed = true

	l.logger.InfoContext(ctx, "project downloaded",
		"project", key.String(),
		"size", size,
		"duration", time.Since(start),
	)
	return DirInfo{Key: key, Dir: dir, Size: size}, nil
}

// fetch downloads the named blob to path. Stores implementing
// blobstore.Downloader are used directly unless bandwidth is limited.
func (l *Loader) fetch(ctx context.Context, name, path string) error {
	f, err := l.fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create archive file")
	}
	if err := l.copyArchive(ctx, name, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "write archive file")
	}
	return nil
}

func (l *Loader) copyArchive(ctx context.Context, name string, f vfs.File) error {
	if d, ok := l.store.(blobstore.Downloader); ok && l.rc.IOBurst() == 0 {
		if _, err := d.Download(ctx, name, f); err != nil {
			return storeError(err, name)
		}
		return nil
	}

	blob, err := l.store.Open(ctx, name)
	if err != nil {
		return storeError(err, name)
	}
	defer blob.Close()

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return storeError(err, name)
	}
	defer r.Close()

	if _, err := io.Copy(f, resource.NewRateLimitedReader(ctx, r, l.rc)); err != nil {
		return errors.Wrapf(err, errors.CodeNetwork, "download project archive %s", name)
	}
	return nil
}

// LoadAll finds the project directories already in the cache directory.
// Sizes are read (or computed) in parallel.
func (l *Loader) LoadAll(ctx context.Context) (map[Key]DirInfo, error) {
	entries, err := l.fsys.ReadDir(l.dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "read cache directory %s", l.dir)
	}

	var (
		mu       sync.Mutex
		projects = make(map[Key]DirInfo)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, e := range entries {
		name := e.Name()
		if !projectDirPattern.MatchString(name) {
			continue
		}
		if !e.IsDir() {
			l.logger.ErrorContext(ctx, "not a project directory, skipping", "name", name)
			continue
		}
		key, err := ParseKey(name)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidInput, "load existing project %s", name)
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dir := filepath.Join(l.dir, name)
			size, err := dirSizeAndSave(l.fsys, dir)
			if err != nil {
				return errors.Wrapf(err, errors.CodeInternal, "load existing project %s", name)
			}
			mu.Lock()
			projects[key] = DirInfo{Key: key, Dir: dir, Size: size}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return projects, nil
}

// Remove deletes the project directory.
func (l *Loader) Remove(ctx context.Context, key Key, value DirInfo) error {
	l.logger.InfoContext(ctx, "deleting project from cache", "project", key.String())
	if err := l.fsys.RemoveAll(value.Dir); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "delete project %s", key)
	}
	return nil
}

// removeStaging deletes leftovers of downloads interrupted by a crash.
func (l *Loader) removeStaging(ctx context.Context) error {
	entries, err := l.fsys.ReadDir(l.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		l.logger.InfoContext(ctx, "removing stale download", "path", path)
		if err := l.fsys.RemoveAll(path); err != nil {
			return err
		}
	}
	return nil
}

var _ lockingcache.Loader[Key, DirInfo] = (*Loader)(nil)
