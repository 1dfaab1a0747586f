//go:build unix

package field

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile memory-maps the whole file read-only. The returned unmap func
// must be called exactly once when the caller is done with data.
func mapFile(f *os.File, size int64) (data []byte, unmap func() error, err error) {
	if size == 0 {
		return nil, func() error { return nil }, nil
	}
	b, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return b, func() error { return unix.Munmap(b) }, nil
}
