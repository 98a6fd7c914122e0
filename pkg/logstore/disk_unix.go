//go:build !windows

package logstore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// availableBytes returns the bytes available to unprivileged users on the
// filesystem holding path.
func availableBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("logstore: failed to get disk stats: %w", err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
