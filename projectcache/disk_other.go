//go:build !linux && !darwin && !freebsd

package projectcache

import "github.com/jmgilman/go/errors"

func usableBytes(string) (int64, error) {
	return 0, errors.New(errors.CodeInvalidConfig, "SizePercentageOfDisk is not supported on this platform")
}
