//go:build darwin

package fsys

import "syscall"

// fillStatFields extracts platform-specific fields from syscall.Stat_t.
func fillStatFields(stat *syscall.Stat_t, e *PathEntry) {
	e.Dev = uint64(stat.Dev) //nolint:gosec // G115: device numbers are non-negative
	e.Ino = stat.Ino
	e.Nlink = uint64(stat.Nlink)
}
