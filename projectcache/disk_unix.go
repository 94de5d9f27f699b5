//go:build linux || darwin || freebsd

package projectcache

import "golang.org/x/sys/unix"

// usableBytes returns the space available to unprivileged users on the
// filesystem holding dir.
func usableBytes(dir string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
