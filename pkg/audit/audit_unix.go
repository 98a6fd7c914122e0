//go:build !windows

package audit

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// checkDiskSpace verifies sufficient disk space for audit log writes. A
// failing stat does not block the write.
func (l *Logger) checkDiskSpace() error {
	var stat unix.Statfs_t
	if err := unix.Statfs(l.path, &stat); err != nil {
		if err := unix.Statfs(filepath.Dir(l.path), &stat); err != nil {
			return nil
		}
	}

	available := uint64(stat.Bavail) * uint64(stat.Bsize)
	if available < MinAuditDiskSpace {
		return fmt.Errorf("%w: only %d bytes available, need at least %d",
			ErrInsufficientDisk, available, MinAuditDiskSpace)
	}
	return nil
}
