package projectcache

import (
	"github.com/hupe1980/lockingcache/blobstore"
	"github.com/jmgilman/go/errors"
)

// ErrCacheDirLocked is returned by Open when another process holds the
// cache directory.
var ErrCacheDirLocked = errors.New(errors.CodeConflict, "project cache directory is in use by another process")

// storeError classifies an error from the blobstore.
func storeError(err error, name string) error {
	if errors.Is(err, blobstore.ErrNotFound) {
		return errors.Wrapf(err, errors.CodeNotFound, "project archive %s not found", name)
	}
	return errors.Wrapf(err, errors.CodeNetwork, "fetch project archive %s", name)
}
