// Package testutil provides testing utilities for lockingcache.
//
// This package is intended for use in tests and benchmarks only.
//
// # Access Patterns
//
//	z := testutil.NewZipf(seed, 1000, 1.2)
//	keys := z.Keys(4096) // skewed key popularity
//
// # Archives
//
//	data, err := testutil.ZipArchive(map[string][]byte{"bin/run.sh": script})
package testutil
