package fsys

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Compile-time interface checks.
var (
	_ FS            = (*Local)(nil)
	_ MountResolver = (*Local)(nil)
	_ SpaceReporter = (*Local)(nil)
)

const iterBatch = 128

// Local is the host filesystem.
type Local struct {
	mu       sync.Mutex
	mounts   []Mount
	loadedAt time.Time
}

// NewLocal returns a provider backed by the host filesystem.
func NewLocal() *Local {
	return &Local{}
}

func (*Local) Stat(path string) (PathEntry, error) {
	return lstat(path)
}

func lstat(path string) (PathEntry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return PathEntry{}, err
	}
	e := entryFromInfo(path, info)
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		fillStatFields(stat, &e)
	}
	if e.Kind == Symlink {
		target, err := os.Readlink(path)
		if err != nil {
			return PathEntry{}, err
		}
		e.LinkTarget = target
	}
	return e, nil
}

//nolint:ireturn // implements Provider interface
func (*Local) Iterate(path string) (Iterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &localIterator{dir: f, path: path}, nil
}

type localIterator struct {
	dir     *os.File
	err     error
	path    string
	pending []os.DirEntry
	done    bool
}

func (it *localIterator) Next() (PathEntry, bool) {
	for {
		for len(it.pending) > 0 {
			d := it.pending[0]
			it.pending = it.pending[1:]
			e, err := lstat(filepath.Join(it.path, d.Name()))
			if err != nil {
				// vanished between readdir and lstat
				continue
			}
			return e, true
		}
		if it.done {
			return PathEntry{}, false
		}
		batch, err := it.dir.ReadDir(iterBatch)
		if err != nil {
			it.done = true
			if err != io.EOF {
				it.err = err
			}
		}
		it.pending = batch
	}
}

func (it *localIterator) Err() error   { return it.err }
func (it *localIterator) Close() error { return it.dir.Close() }

func (*Local) Mkdir(path string, perm fs.FileMode) error {
	return os.Mkdir(path, perm)
}

//nolint:ireturn // implements Mutator interface
func (*Local) OpenRead(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

//nolint:ireturn // implements Mutator interface
func (*Local) Create(path string, perm fs.FileMode) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}

func (*Local) Symlink(target, path string) error {
	return os.Symlink(target, path)
}

func (*Local) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (*Local) Remove(path string) error {
	return os.Remove(path)
}

func (*Local) Chmod(path string, mode fs.FileMode) error {
	return os.Chmod(path, mode)
}

func (*Local) Chtimes(path string, atime, mtime time.Time) error {
	return os.Chtimes(path, atime, mtime)
}
