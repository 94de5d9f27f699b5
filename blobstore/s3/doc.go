// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("projects/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	pc, err := projectcache.Open(ctx, cfg, store)
//
// # Features
//
//   - Range reads for partial fetches
//   - Parallel ranged downloads via the SDK transfer manager
//   - Configurable prefix for multi-tenant isolation
package s3
