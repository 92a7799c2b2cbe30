//go:build windows

package platform

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// FreeSpace returns the number of bytes available to unprivileged processes
// on the volume containing path.
func FreeSpace(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("encode path %s: %w", path, err)
	}
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(p, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return 0, fmt.Errorf("disk free space %s: %w", path, err)
	}
	return freeBytesAvailable, nil
}
