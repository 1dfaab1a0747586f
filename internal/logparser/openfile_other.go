//go:build !unix

package logparser

import "os"

// openNoFollow falls back to a stat-then-open-then-recheck sequence on
// platforms without O_NOFOLLOW, rejecting the open if the path turns out
// to name a symlink (checked both before and after the open to close the
// TOCTOU window as tightly as the stdlib allows).
func openNoFollow(path string) (*os.File, error) {
	lst, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if lst.Mode()&os.ModeSymlink != 0 {
		return nil, errSymlink
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	lst2, err := os.Lstat(path)
	if err != nil || lst2.Mode()&os.ModeSymlink != 0 {
		f.Close()
		return nil, errSymlink
	}
	return f, nil
}
