package fsys

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

var _ FS = (*Afero)(nil)

// Afero adapts an afero.Fs. Every entry reports the same device id, so
// renames within one Afero never cross devices. Symlinks are supported when
// the underlying Fs implements afero.Lstater, afero.Linker and
// afero.LinkReader (OsFs does, MemMapFs does not).
type Afero struct {
	fs  afero.Fs
	dev uint64
}

// NewAfero wraps fs; dev is reported as PathEntry.Dev for all entries.
func NewAfero(fs afero.Fs, dev uint64) *Afero {
	return &Afero{fs: fs, dev: dev}
}

func (a *Afero) Stat(path string) (PathEntry, error) {
	var (
		info fs.FileInfo
		err  error
	)
	if ls, ok := a.fs.(afero.Lstater); ok {
		info, _, err = ls.LstatIfPossible(path)
	} else {
		info, err = a.fs.Stat(path)
	}
	if err != nil {
		return PathEntry{}, err
	}
	e := entryFromInfo(path, info)
	e.Dev = a.dev
	if e.Kind == Symlink {
		lr, ok := a.fs.(afero.LinkReader)
		if !ok {
			return PathEntry{}, fmt.Errorf("readlink %s: %w", path, errors.ErrUnsupported)
		}
		if e.LinkTarget, err = lr.ReadlinkIfPossible(path); err != nil {
			return PathEntry{}, err
		}
	}
	return e, nil
}

//nolint:ireturn // implements Provider interface
func (a *Afero) Iterate(path string) (Iterator, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, err
	}
	return &aferoIterator{a: a, dir: f, path: path}, nil
}

type aferoIterator struct {
	a       *Afero
	dir     afero.File
	err     error
	path    string
	pending []string
	done    bool
}

func (it *aferoIterator) Next() (PathEntry, bool) {
	for {
		for len(it.pending) > 0 {
			name := it.pending[0]
			it.pending = it.pending[1:]
			e, err := it.a.Stat(filepath.Join(it.path, name))
			if err != nil {
				continue
			}
			return e, true
		}
		if it.done {
			return PathEntry{}, false
		}
		names, err := it.dir.Readdirnames(iterBatch)
		if err != nil || len(names) == 0 {
			it.done = true
			if err != nil && err != io.EOF {
				it.err = err
			}
		}
		it.pending = names
	}
}

func (it *aferoIterator) Err() error   { return it.err }
func (it *aferoIterator) Close() error { return it.dir.Close() }

func (a *Afero) Mkdir(path string, perm fs.FileMode) error {
	return a.fs.Mkdir(path, perm)
}

//nolint:ireturn // implements Mutator interface
func (a *Afero) OpenRead(path string) (io.ReadCloser, error) {
	return a.fs.Open(path)
}

//nolint:ireturn // implements Mutator interface
func (a *Afero) Create(path string, perm fs.FileMode) (io.WriteCloser, error) {
	return a.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}

func (a *Afero) Symlink(target, path string) error {
	l, ok := a.fs.(afero.Linker)
	if !ok {
		return &os.LinkError{Op: "symlink", Old: target, New: path, Err: errors.ErrUnsupported}
	}
	return l.SymlinkIfPossible(target, path)
}

func (a *Afero) Rename(oldPath, newPath string) error {
	return a.fs.Rename(oldPath, newPath)
}

func (a *Afero) Remove(path string) error {
	return a.fs.Remove(path)
}

func (a *Afero) Chmod(path string, mode fs.FileMode) error {
	return a.fs.Chmod(path, mode)
}

func (a *Afero) Chtimes(path string, atime, mtime time.Time) error {
	return a.fs.Chtimes(path, atime, mtime)
}
