package fsys

import (
	"io/fs"
	"path/filepath"
	"time"
)

// Kind identifies the type of a filesystem entry.
type Kind int

const (
	Unknown Kind = iota
	Regular
	Directory
	Symlink
	CharDevice
	BlockDevice
	FIFO
	Socket
)

var kindNames = [...]string{
	Unknown:     "unknown",
	Regular:     "regular",
	Directory:   "directory",
	Symlink:     "symlink",
	CharDevice:  "char-device",
	BlockDevice: "block-device",
	FIFO:        "fifo",
	Socket:      "socket",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsSpecial reports whether k is a device, fifo or socket.
func (k Kind) IsSpecial() bool {
	switch k {
	case CharDevice, BlockDevice, FIFO, Socket:
		return true
	}
	return false
}

// KindOf maps a file mode to a Kind.
func KindOf(mode fs.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return Regular
	case mode.IsDir():
		return Directory
	case mode&fs.ModeSymlink != 0:
		return Symlink
	case mode&fs.ModeCharDevice != 0:
		return CharDevice
	case mode&fs.ModeDevice != 0:
		return BlockDevice
	case mode&fs.ModeNamedPipe != 0:
		return FIFO
	case mode&fs.ModeSocket != 0:
		return Socket
	default:
		return Unknown
	}
}

// PathEntry is a snapshot of a single filesystem entry taken at visit time.
// It never follows symlinks: a link is reported as Symlink with LinkTarget set.
type PathEntry struct {
	ModTime    time.Time
	Path       string
	LinkTarget string
	Size       int64
	Dev        uint64
	Ino        uint64
	Nlink      uint64
	Mode       fs.FileMode
	Kind       Kind
}

// Name returns the final path element.
func (e PathEntry) Name() string { return filepath.Base(e.Path) }

// IsDir reports whether the entry is a directory (not a link to one).
func (e PathEntry) IsDir() bool { return e.Kind == Directory }

// IsSymlink reports whether the entry is a symbolic link.
func (e PathEntry) IsSymlink() bool { return e.Kind == Symlink }

func entryFromInfo(path string, info fs.FileInfo) PathEntry {
	e := PathEntry{
		Path:    path,
		Kind:    KindOf(info.Mode()),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
	if e.Kind != Directory {
		e.Size = info.Size()
	}
	return e
}
