//go:build !linux

package fsys

import "io"

// Preallocate is a no-op where fallocate is unavailable.
func Preallocate(_ io.Writer, _ int64) {}
