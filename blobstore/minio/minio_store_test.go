package minio

import (
	"context"
	"io"
	"testing"

	"github.com/hupe1980/lockingcache/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-lockingcache"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-prefix/")

	// Test Put and Open
	data := []byte("hello minio world")
	err = store.Put(ctx, "1/1.zip", data)
	require.NoError(t, err)

	blob, err := store.Open(ctx, "1/1.zip")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	rc, err := blobstore.NewReader(ctx, blob)
	require.NoError(t, err)
	all, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, all)
	require.NoError(t, rc.Close())

	// Test ReadRange
	rc, err = blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, blob.Close())

	_, err = store.Open(ctx, "1/missing.zip")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// Cleanup
	_ = client.RemoveObject(ctx, bucket, "test-prefix/1/1.zip", minio.RemoveObjectOptions{})
}
