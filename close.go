package lockingcache

// Close releases resources held by this Cache.
//
// It stops the background cleaner. Cached values stay in place and open
// Handles remain usable; Close does not call Loader.Remove.
func (c *Cache[K, V]) Close() error {
	if c == nil {
		return nil
	}
	c.ShutdownCleanup()
	return nil
}
