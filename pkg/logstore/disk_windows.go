//go:build windows

package logstore

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// availableBytes returns the bytes available to the caller on the volume
// holding path.
func availableBytes(path string) (uint64, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("logstore: failed to convert path: %w", err)
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return 0, fmt.Errorf("logstore: failed to get disk stats: %w", err)
	}
	return freeBytesAvailable, nil
}
