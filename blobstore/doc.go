// Package blobstore provides storage abstraction for the archives a cache
// loader downloads.
//
// BlobStore is the interface for reading and writing data blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem (shared mounts, tests)
//   - MemoryStore: In-memory, for tests
//   - s3.Store: Amazon S3 with range reads and parallel downloads
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)      // Open for reading
//	    Put(ctx, name, data) error         // Atomic write
//	}
//
// Stores that can fetch a whole blob in parallel should also implement
// Downloader; callers check for it with a type assertion.
package blobstore
