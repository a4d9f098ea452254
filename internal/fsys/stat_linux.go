//go:build linux

package fsys

import "syscall"

// fillStatFields extracts platform-specific fields from syscall.Stat_t.
func fillStatFields(stat *syscall.Stat_t, e *PathEntry) {
	e.Dev = stat.Dev
	e.Ino = stat.Ino
	e.Nlink = uint64(stat.Nlink) //nolint:unconvert // uint32 on some arches
}
