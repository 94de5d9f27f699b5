// Package lockingcache provides a concurrent, lazily loading, size-bounded
// cache whose entries are read-locked while in use.
//
// Every value is handed out as a Handle that holds the entry's read lock.
// While any Handle is open the value cannot be evicted, so a caller can work
// with an expensive resource (an unpacked directory, an open file, a parsed
// index) without it disappearing underneath. Many goroutines may hold the
// same value at once.
//
// # Quick Start
//
//	loader := ... // implements lockingcache.Loader[string, *Index]
//	sizer := lockingcache.SizerFunc[*Index](func(ix *Index) int64 { return ix.Bytes })
//
//	c, _ := lockingcache.New[string, *Index](loader, sizer,
//		lockingcache.WithCleanup(8<<30, 10<<30, time.Minute),
//	)
//	defer c.Close()
//
//	h, err := c.Get(ctx, "users")
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//	ix := h.Value()
//
// # Loading
//
// A missing key is loaded by exactly one goroutine. Others asking for the
// same key spin until the load has finished and then share the result.
// A failed load leaves the key unloaded and returns a *LoadError; the next
// Get retries.
//
// # Eviction
//
// TryRemove and Cleanup never block on an entry in use: they skip it. The
// background cleaner enabled by WithCleanup runs Cleanup(minSize) whenever
// Size exceeds maxSize. Eviction order is approximately least recently used.
//
// # Observability
//
// Logging goes through a *Logger (a thin slog wrapper, see WithLogger), and
// counters through a MetricsObserver (see WithMetricsObserver). Package
// promobserver exports the counters to Prometheus.
//
// # Subpackages
//
//   - projectcache: a disk cache of unpacked project archives built on Cache
//   - blobstore: where projectcache downloads archives from (local, S3, MinIO)
//   - resource: load concurrency and bandwidth limits
//   - promobserver: Prometheus MetricsObserver
package lockingcache
