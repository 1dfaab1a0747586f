//go:build unix

package logparser

import (
	"os"

	"golang.org/x/sys/unix"
)

// openNoFollow opens path refusing to follow a final symlink component,
// using O_NOFOLLOW where the kernel supports it.
func openNoFollow(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
