//go:build !linux && !darwin && !freebsd && !windows

package queue

import "os"

// checkDiskSpace is not supported on this platform and always passes.
func checkDiskSpace(string, int64) error {
	return nil
}

func syncDir(path string) error {
	d, err := os.Open(path) //nolint:gosec // G304: queue directory
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	return d.Sync()
}
