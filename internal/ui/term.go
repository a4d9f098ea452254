package ui

import (
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

// IsTTY reports whether fd is a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd)) //nolint:gosec // G115: fds are small
}

// Interactive reports whether every file is a terminal, i.e. whether a
// question written to one can be answered on another.
func Interactive(files ...*os.File) bool {
	for _, f := range files {
		if f == nil || !IsTTY(f.Fd()) {
			return false
		}
	}
	return len(files) > 0
}

// TermWidth returns the column count of the terminal on fd, defaultWidth
// when that is unknown.
func TermWidth(fd uintptr) int {
	if w, _, err := term.GetSize(int(fd)); err == nil && w > 0 { //nolint:gosec // G115
		return w
	}
	return defaultWidth
}
