package operation

import (
	"context"
	"errors"

	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
)

// ErrNoTrash is returned for trash and restore plans run without a Trasher.
var ErrNoTrash = errors.New("no trash backend configured")

// Trasher moves entries to and from the desktop trash. Implementations live
// outside the engine.
type Trasher interface {
	Trash(ctx context.Context, path string) error
	// Restore puts a trashed entry back. An empty dest means the original
	// location; the restored path is returned.
	Restore(ctx context.Context, trashed, dest string) (string, error)
}

func (w *Worker) trashEntry(ctx context.Context, path string) error {
	if w.trash == nil {
		return ErrNoTrash
	}
	e := fsys.PathEntry{Path: path}
	w.started(e, "")
	ok, err := w.attempt(ctx, job.TrashFailed, true, path, "", func() error {
		return w.trash.Trash(ctx, path)
	})
	if err != nil || !ok {
		return err
	}
	w.advance(w.unit)
	w.finished(path, "", 0)
	return nil
}

func (w *Worker) restoreEntry(ctx context.Context, pair job.Pair) error {
	if w.trash == nil {
		return ErrNoTrash
	}
	src, err := w.fs.Stat(pair.Source)
	if err != nil {
		src = fsys.PathEntry{Path: pair.Source}
	}

	dst := pair.Dest
	if dst != "" {
		target, merge, err := w.collide(ctx, src, dst)
		if err != nil || target == "" {
			return err
		}
		if merge {
			// restore replaces rather than merges
			ok, err := w.attempt(ctx, job.RestoreFailed, true, target, target, func() error {
				return w.removeAll(target)
			})
			if err != nil || !ok {
				return err
			}
		}
		dst = target
	}

	w.started(src, dst)
	var restored string
	ok, err := w.attempt(ctx, job.RestoreFailed, true, pair.Source, dst, func() error {
		var rerr error
		restored, rerr = w.trash.Restore(ctx, pair.Source, dst)
		return rerr
	})
	if err != nil || !ok {
		return err
	}
	w.advance(w.unit)
	w.finished(pair.Source, restored, src.Size)
	return nil
}

// removeAll deletes a tree without progress accounting.
func (w *Worker) removeAll(path string) error {
	e, err := w.fs.Stat(path)
	if err != nil {
		return err
	}
	if e.IsDir() {
		it, err := w.fs.Iterate(path)
		if err != nil {
			return err
		}
		var names []string
		for {
			c, more := it.Next()
			if !more {
				break
			}
			names = append(names, c.Path)
		}
		lerr := it.Err()
		it.Close()
		if lerr != nil {
			return lerr
		}
		for _, n := range names {
			if err := w.removeAll(n); err != nil {
				return err
			}
		}
	}
	return w.fs.Remove(path)
}
