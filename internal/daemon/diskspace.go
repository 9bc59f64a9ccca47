package daemon

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// freeSpaceMiB reports the space available to unprivileged writers on the
// filesystem holding path.
func freeSpaceMiB(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize) / (1 << 20), nil
}
