package operation

import (
	"context"

	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
)

func (w *Worker) deleteRoot(ctx context.Context, path string) error {
	e, ok, err := w.stat(ctx, path, "")
	if err != nil || !ok {
		return err
	}
	w.root = e.Path
	_, err = w.remove(ctx, e)
	return err
}

// remove deletes e post-order. A directory is kept, without a further
// report, when any of its children could not be removed.
func (w *Worker) remove(ctx context.Context, e fsys.PathEntry) (bool, error) {
	if err := w.gate.Check(); err != nil {
		return false, err
	}
	w.started(e, "")

	if e.IsDir() {
		children, ok, err := w.children(ctx, e.Path)
		if err != nil || !ok {
			return false, err
		}
		complete := true
		for _, c := range children {
			if !w.included(c) {
				complete = false
				continue
			}
			done, err := w.remove(ctx, c)
			if err != nil {
				return false, err
			}
			complete = complete && done
		}
		if !complete {
			w.log.Debug("keeping non-empty directory", "path", e.Path)
			return false, nil
		}
	}

	ok, err := w.attempt(ctx, job.DeleteFailed, false, e.Path, "", func() error {
		return w.fs.Remove(e.Path)
	})
	if err != nil || !ok {
		return false, err
	}
	w.advance(w.unit)
	w.finished(e.Path, "", e.Size)
	return true, nil
}

// children lists dir completely before anything in it is removed.
func (w *Worker) children(ctx context.Context, dir string) ([]fsys.PathEntry, bool, error) {
	var out []fsys.PathEntry
	ok, err := w.attempt(ctx, job.ReadFailed, false, dir, "", func() error {
		out = out[:0]
		it, err := w.fs.Iterate(dir)
		if err != nil {
			return err
		}
		defer it.Close()
		for {
			e, more := it.Next()
			if !more {
				break
			}
			out = append(out, e)
		}
		return it.Err()
	})
	return out, ok, err
}
