//go:build linux

package fsys

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Preallocate reserves size bytes for a file being written without changing
// its apparent length. It only acts on local files and ignores filesystems
// without fallocate support.
//
//nolint:gosec // G115: fd values are small non-negative integers
func Preallocate(w io.Writer, size int64) {
	f, ok := w.(*os.File)
	if !ok || size <= 0 {
		return
	}
	//nolint:errcheck // advisory
	unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_KEEP_SIZE, 0, size)
}
