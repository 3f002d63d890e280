//go:build windows

package queue

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// checkDiskSpace returns ErrInsufficientDiskSpace when the volume holding
// dir has less than minFree bytes available to the caller. A zero minimum
// disables the check.
func checkDiskSpace(dir string, minFree int64) error {
	if minFree <= 0 {
		return nil
	}

	path, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return fmt.Errorf("check disk space: %w", err)
	}

	var available, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(path, &available, &total, &totalFree); err != nil {
		return fmt.Errorf("check disk space: %w", err)
	}

	if available < uint64(minFree) {
		return fmt.Errorf("%w: %d bytes available, %d required",
			ErrInsufficientDiskSpace, available, minFree)
	}
	return nil
}

// syncDir is a no-op: Windows cannot open a directory for FlushFileBuffers
// through os.Open, and NTFS journals renames itself.
func syncDir(string) error {
	return nil
}
