// Package projectcache keeps unpacked project archives on local disk.
//
// Each project version lives in its own directory, <dir>/<projectID>.<version>,
// downloaded as <projectID>/<version>.zip from a blobstore and unpacked on
// first use. Directories are handed out through a lockingcache.Cache, so a
// directory that is being used by a running job is never deleted, and the
// total disk footprint is kept between the configured low- and high-water
// marks.
//
// Only one process may use a cache directory at a time; Open takes a file
// lock and fails with ErrCacheDirLocked otherwise.
//
//	pc, err := projectcache.Open(ctx, cfg, store)
//	if err != nil {
//		return err
//	}
//	defer pc.Close()
//
//	h, err := pc.Get(ctx, projectcache.Key{ProjectID: 12, Version: 3})
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//	run(h.Value().Dir)
package projectcache
