// Package rwlock provides a reader/writer lock with a non-blocking writer
// path and atomic write-to-read downgrade.
//
// sync.RWMutex has TryLock but cannot downgrade: a goroutine holding the
// write lock cannot take the read lock before releasing it. The cache needs
// that downgrade so a freshly loaded entry can never be evicted between the
// end of the load and the start of the read.
//
// Writers never block. Readers block only while a writer holds the lock.
package rwlock
