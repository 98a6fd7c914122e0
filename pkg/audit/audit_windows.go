//go:build windows

package audit

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// checkDiskSpace verifies sufficient disk space for audit log writes. A
// failing query does not block the write.
func (l *Logger) checkDiskSpace() error {
	pathPtr, err := windows.UTF16PtrFromString(l.path)
	if err != nil {
		return nil
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return nil
	}
	if freeBytesAvailable < MinAuditDiskSpace {
		return fmt.Errorf("%w: only %d bytes available, need at least %d",
			ErrInsufficientDisk, freeBytesAvailable, MinAuditDiskSpace)
	}
	return nil
}
