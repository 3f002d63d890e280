//go:build linux || darwin || freebsd

package queue

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// checkDiskSpace returns ErrInsufficientDiskSpace when the file system
// holding dir has less than minFree bytes available. A zero minimum
// disables the check.
func checkDiskSpace(dir string, minFree int64) error {
	if minFree <= 0 {
		return nil
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("check disk space: %w", err)
	}

	available := uint64(stat.Bavail) * uint64(stat.Bsize) //nolint:gosec // block counts are non-negative
	if available < uint64(minFree) {
		return fmt.Errorf("%w: %d bytes available, %d required",
			ErrInsufficientDiskSpace, available, minFree)
	}
	return nil
}

// syncDir fsyncs a directory so renames into it survive a crash.
func syncDir(path string) error {
	d, err := os.Open(path) //nolint:gosec // G304: queue directory
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	return d.Sync()
}
