//go:build !unix

package field

import (
	"io"
	"os"
)

// mapFile falls back to a plain read on platforms without POSIX mmap. The
// zero-copy memory-map path is a Linux/production-host optimization;
// correctness does not depend on it.
func mapFile(f *os.File, size int64) (data []byte, unmap func() error, err error) {
	if size == 0 {
		return nil, func() error { return nil }, nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, nil, err
	}
	return buf, func() error { return nil }, nil
}
