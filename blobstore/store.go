package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing immutable data blobs (project archives).
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
	// ReadRange returns a reader for length bytes starting at off.
	// Ranges past the end are truncated; a range starting at or after the
	// end yields an empty reader.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// Downloader is an optional interface for stores that can fetch a whole blob
// faster than a sequential read, e.g. with parallel ranged requests.
type Downloader interface {
	// Download writes the blob to w and returns the number of bytes written.
	Download(ctx context.Context, name string, w io.WriterAt) (int64, error)
}

// NewReader returns a reader over the whole blob.
func NewReader(ctx context.Context, b Blob) (io.ReadCloser, error) {
	return b.ReadRange(ctx, 0, b.Size())
}

// clampRange bounds [off, off+length) to a blob of the given size.
// ok is false when nothing is left to read.
func clampRange(size, off, length int64) (start, n int64, ok bool) {
	if off < 0 {
		off = 0
	}
	if off >= size || length <= 0 {
		return 0, 0, false
	}
	if off+length > size {
		length = size - off
	}
	return off, length, true
}

func emptyReader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(nil))
}
