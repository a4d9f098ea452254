// Package fsys abstracts the filesystem capabilities the statistics and
// operation engines need: stat, lazy directory iteration and mutation.
// Implementations are injected explicitly; there is no process-wide registry.
package fsys

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

// ErrNotFound is returned by Stat when the path does not exist.
var ErrNotFound = fs.ErrNotExist

// ErrLinkLoop is returned when link resolution exceeds MaxLinkHops.
var ErrLinkLoop = errors.New("too many levels of symbolic links")

// Provider returns entry metadata and directory listings.
type Provider interface {
	// Stat returns metadata for path without following a final symlink.
	Stat(path string) (PathEntry, error)

	// Iterate opens a lazy listing of the immediate children of path.
	// Each call returns a fresh iterator; iterators are not shared.
	Iterate(path string) (Iterator, error)
}

// Iterator lazily enumerates directory entries. It is finite and must be
// closed by the caller.
type Iterator interface {
	// Next returns the next entry, or false when the listing is exhausted
	// or failed (see Err).
	Next() (PathEntry, bool)
	Err() error
	Close() error
}

// Mutator performs filesystem mutations on behalf of the operation worker.
type Mutator interface {
	Mkdir(path string, perm fs.FileMode) error
	OpenRead(path string) (io.ReadCloser, error)
	// Create opens path for writing, truncating any existing file.
	Create(path string, perm fs.FileMode) (io.WriteCloser, error)
	Symlink(target, path string) error
	Rename(oldPath, newPath string) error
	// Remove deletes a single file, link or empty directory.
	Remove(path string) error
	Chmod(path string, mode fs.FileMode) error
	Chtimes(path string, atime, mtime time.Time) error
}

// FS is the full capability set used by transfers.
type FS interface {
	Provider
	Mutator
}

// Mount describes the filesystem mount containing a path.
type Mount struct {
	Root   string // mount point
	Device string // mount source, e.g. "proc", "/dev/sda1"
	FSType string
}

// MountResolver is implemented by providers that know the mount table.
type MountResolver interface {
	MountOf(path string) (Mount, error)
}

// SpaceReporter is implemented by providers that can report free space.
type SpaceReporter interface {
	FreeSpace(path string) (int64, error)
}
