package operation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
)

type fileID struct{ dev, ino uint64 }

// transferRoot copies (or, with move set, cuts) one plan pair.
func (w *Worker) transferRoot(ctx context.Context, pair job.Pair, move bool) error {
	src, ok, err := w.stat(ctx, pair.Source, pair.Dest)
	if err != nil || !ok {
		return err
	}
	dst := pair.Dest

	if samePath(src.Path, dst) {
		if move {
			w.skip(src.Path, dst, ErrSameLocation)
			return nil
		}
		dst = w.nextFree(dst)
	} else if src.IsDir() && within(src.Path, dst) {
		return w.giveUp(ctx, job.TargetInsideSource, src.Path, dst,
			fmt.Errorf("%s: %w", dst, errInsideSource))
	}

	w.root = src.Path
	w.stack = map[fileID]bool{}
	w.crossDevice = move && !w.sameDevice(pair)
	_, err = w.transfer(ctx, src, dst, move)
	return err
}

// stat fetches path, routing failures through a decision. ok is false when
// the entry was given up.
func (w *Worker) stat(ctx context.Context, path, dst string) (fsys.PathEntry, bool, error) {
	var e fsys.PathEntry
	ok, err := w.attempt(ctx, job.ReadFailed, false, path, dst, func() error {
		var serr error
		e, serr = w.fs.Stat(path)
		return serr
	})
	return e, ok, err
}

// transfer moves one entry and its subtree. done reports that the source
// was fully transferred and, in move mode, removed.
func (w *Worker) transfer(ctx context.Context, src fsys.PathEntry, dst string, move bool) (bool, error) {
	if err := w.gate.Check(); err != nil {
		return false, err
	}
	if w.settings.IsPseudoFile(src.Path) {
		w.skip(src.Path, dst, ErrPseudoFile)
		return false, nil
	}

	target, merge, err := w.collide(ctx, src, dst)
	if err != nil || target == "" {
		return false, err
	}

	if move && !w.crossDevice && !merge {
		renamed, err := w.rename(ctx, src, target)
		if err != nil || renamed {
			return renamed, err
		}
		if !w.crossDevice {
			return false, nil
		}
	}

	w.started(src, target)
	switch {
	case src.IsDir():
		return w.copyDir(ctx, src, target, move, merge)
	case src.IsSymlink():
		return w.copyLink(ctx, src, target, move)
	case src.Kind.IsSpecial():
		w.skip(src.Path, target, ErrSpecialFile)
		return false, nil
	}

	done, err := w.copyFile(ctx, src, src, target)
	if err != nil || !done {
		return false, err
	}
	if move {
		return w.removeSource(ctx, src.Path, target)
	}
	return true, nil
}

// rename attempts a same-device move. It returns false with crossDevice set
// when the caller should fall back to copying.
func (w *Worker) rename(ctx context.Context, src fsys.PathEntry, target string) (bool, error) {
	ok, err := w.attempt(ctx, job.WriteFailed, false, src.Path, target, func() error {
		rerr := w.fs.Rename(src.Path, target)
		if errors.Is(rerr, unix.EXDEV) {
			w.crossDevice = true
			w.log.Debug("cross-device move, copying instead", "path", src.Path, "dest", target)
			return nil
		}
		return rerr
	})
	if err != nil || !ok || w.crossDevice {
		return false, err
	}
	w.finished(src.Path, target, src.Size)
	return true, nil
}

// collide resolves an existing destination. An empty target means the
// entry was skipped; merge means both sides are directories and the
// contents should be combined.
func (w *Worker) collide(ctx context.Context, src fsys.PathEntry, dst string) (string, bool, error) {
	existing, err := w.fs.Stat(dst)
	if err != nil {
		return dst, false, nil //nolint:nilerr // missing destination is the common case
	}

	allowed := job.CollisionChoices
	if existing.IsDir() && !src.IsDir() {
		allowed = job.ConflictChoices
	}
	dec, err := w.decider.Ask(ctx, job.Request{
		Kind:    job.FileExists,
		Source:  src.Path,
		Dest:    dst,
		Message: fmt.Sprintf("%s already exists", dst),
		Allowed: allowed,
	})
	if err != nil {
		return "", false, err
	}

	switch dec {
	case job.Overwrite:
		if existing.IsDir() && src.IsDir() {
			return dst, true, nil
		}
		ok, err := w.attempt(ctx, job.DeleteFailed, true, dst, dst, func() error {
			return w.fs.Remove(dst)
		})
		if err != nil || !ok {
			return "", false, err
		}
		return dst, false, nil
	case job.Rename:
		aside := w.nextFree(dst)
		ok, err := w.attempt(ctx, job.WriteFailed, false, dst, aside, func() error {
			return w.fs.Rename(dst, aside)
		})
		if err != nil || !ok {
			return "", false, err
		}
		w.log.Debug("moved existing entry aside", "path", dst, "to", aside)
		return dst, false, nil
	case job.Coexist:
		return w.nextFree(dst), false, nil
	case job.Cancel:
		w.gate.Stop()
		return "", false, job.ErrStopped
	default:
		w.skip(src.Path, dst, ErrSkipped)
		return "", false, nil
	}
}

func (w *Worker) copyDir(ctx context.Context, src fsys.PathEntry, target string, move, merge bool) (bool, error) {
	id := fileID{src.Dev, src.Ino}
	if src.Ino != 0 && w.stack[id] {
		return false, w.giveUp(ctx, job.SymlinkLoop, src.Path, target,
			fmt.Errorf("%s: %w", src.Path, fsys.ErrLinkLoop))
	}
	w.stack[id] = true
	defer delete(w.stack, id)

	if !merge {
		ok, err := w.attempt(ctx, job.WriteFailed, false, src.Path, target, func() error {
			return w.fs.Mkdir(target, src.Mode.Perm()|0o700)
		})
		if err != nil || !ok {
			return false, err
		}
		w.stats.AddDirsCreated(1)
		w.events.Emit(event.Event{Type: event.DirCreated, JobID: w.jobID, Path: src.Path, Dest: target})
	}
	w.advance(w.unit)

	complete := true
	ok, err := w.eachChild(ctx, src.Path, target, move, func(child fsys.PathEntry) error {
		if !w.included(child) {
			complete = false
			return nil
		}
		done, err := w.transfer(ctx, child, filepath.Join(target, child.Name()), move)
		complete = complete && done
		return err
	})
	if err != nil {
		return false, err
	}
	complete = complete && ok

	if !merge {
		w.restoreAttrs(src, target)
	}
	w.finished(src.Path, target, 0)

	if !move {
		return complete, nil
	}
	if !complete {
		w.log.Debug("leaving partially moved directory", "path", src.Path)
		return false, nil
	}
	return w.removeSource(ctx, src.Path, target)
}

// eachChild calls fn for every entry of dir. Listing failures are reported
// and make ok false. With collect set the listing is read completely before
// fn runs, so fn may remove entries.
func (w *Worker) eachChild(ctx context.Context, dir, target string, collect bool, fn func(fsys.PathEntry) error) (bool, error) {
	if collect {
		children, ok, err := w.children(ctx, dir)
		if err != nil || !ok {
			return false, err
		}
		for _, c := range children {
			if err := fn(c); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	var it fsys.Iterator
	ok, err := w.attempt(ctx, job.ReadFailed, false, dir, target, func() error {
		var ierr error
		it, ierr = w.fs.Iterate(dir)
		return ierr
	})
	if err != nil || !ok {
		return false, err
	}
	defer it.Close()
	for {
		child, more := it.Next()
		if !more {
			break
		}
		if err := fn(child); err != nil {
			return false, err
		}
	}
	if lerr := it.Err(); lerr != nil {
		return false, w.giveUp(ctx, classify(lerr, job.ReadFailed), dir, target, lerr)
	}
	return true, nil
}

// copyLink recreates a symlink, or copies what it points to when link
// targets are requested.
func (w *Worker) copyLink(ctx context.Context, src fsys.PathEntry, target string, move bool) (bool, error) {
	if !move && w.plan.Flags.Has(job.CopyLinkTargets) {
		resolved, err := fsys.Resolve(w.fs, src)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// dangling: recreate the link itself
		case err != nil:
			return false, w.giveUp(ctx, classify(err, job.ReadFailed), src.Path, target, err)
		case resolved.IsDir():
			return w.copyDir(ctx, resolved, target, false, false)
		case resolved.Kind == fsys.Regular:
			return w.copyFile(ctx, src, resolved, target)
		default:
			w.skip(src.Path, target, ErrSpecialFile)
			return false, nil
		}
	}

	ok, err := w.attempt(ctx, job.WriteFailed, false, src.Path, target, func() error {
		return w.fs.Symlink(src.LinkTarget, target)
	})
	if err != nil || !ok {
		return false, err
	}
	w.advance(w.unit)
	w.finished(src.Path, target, 0)
	if move {
		return w.removeSource(ctx, src.Path, target)
	}
	return true, nil
}

// copyFile streams data into target. entry is what gets reported; data is
// the regular file actually read (they differ when following a link).
func (w *Worker) copyFile(ctx context.Context, entry, data fsys.PathEntry, target string) (bool, error) {
	var credited int64
	credit := func(written int64) {
		if written > credited {
			w.advance(written - credited)
			credited = written
		}
	}

	var written int64
	ok, err := w.attempt(ctx, job.WriteFailed, false, entry.Path, target, func() error {
		var serr error
		written, serr = w.stream(ctx, entry.Path, data, target, credit)
		if serr != nil {
			return serr
		}
		if !w.verify() {
			return nil
		}
		if verr := w.verifyCopy(data.Path, target); verr != nil {
			w.partial = target
			return verr
		}
		return nil
	})
	if err != nil {
		w.keepPartial()
		return false, err
	}
	if !ok {
		w.dropPartial()
		return false, nil
	}

	credit(w.charge(data))
	w.restoreAttrs(data, target)
	w.finished(entry.Path, target, written)
	return true, nil
}

func (w *Worker) verify() bool {
	return w.settings.Verify || w.plan.Flags.Has(job.Verify)
}

// stream performs one copy attempt and returns the bytes written.
func (w *Worker) stream(ctx context.Context, name string, data fsys.PathEntry, target string, credit func(int64)) (int64, error) {
	r, err := w.fs.OpenRead(data.Path)
	if err != nil {
		return 0, &opError{err: err, kind: job.ReadFailed}
	}
	defer r.Close()

	out, err := w.fs.Create(target, data.Mode.Perm()|0o200)
	if err != nil {
		return 0, &opError{err: err, kind: job.WriteFailed}
	}
	w.partial = target
	fsys.Preallocate(out, data.Size)

	bp := w.getBuffer()
	defer w.putBuffer(bp)
	buf := *bp

	var written int64
	for {
		if err := w.gate.Check(); err != nil {
			out.Close()
			w.incomplete = append(w.incomplete, target)
			w.partial = ""
			return written, err
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if err := waitBytes(ctx, w.limiter, n); err != nil {
				out.Close()
				if w.gate.Stopping() {
					w.incomplete = append(w.incomplete, target)
					w.partial = ""
					return written, job.ErrStopped
				}
				return written, err
			}
			if _, err := out.Write(buf[:n]); err != nil {
				out.Close()
				return written, &opError{err: err, kind: job.WriteFailed}
			}
			written += int64(n)
			w.stats.AddBytesWritten(int64(n))
			credit(written)
			w.entryProgress(name, target, written)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			out.Close()
			return written, &opError{err: rerr, kind: job.ReadFailed}
		}
	}

	if err := out.Close(); err != nil {
		return written, &opError{err: err, kind: job.WriteFailed}
	}
	w.partial = ""
	return written, nil
}

// keepPartial leaves the half-written file of a stopped run on disk and
// lists it as incomplete.
func (w *Worker) keepPartial() {
	if w.partial == "" {
		return
	}
	w.incomplete = append(w.incomplete, w.partial)
	w.partial = ""
}

// dropPartial removes the half-written file of a skipped entry.
func (w *Worker) dropPartial() {
	if w.partial == "" {
		return
	}
	if err := w.fs.Remove(w.partial); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.log.Debug("could not remove partial file", "path", w.partial, "error", err)
	}
	w.partial = ""
}

func (w *Worker) removeSource(ctx context.Context, src, target string) (bool, error) {
	return w.attempt(ctx, job.DeleteFailed, true, src, target, func() error {
		return w.fs.Remove(src)
	})
}

func (w *Worker) restoreAttrs(src fsys.PathEntry, target string) {
	if err := w.fs.Chmod(target, src.Mode.Perm()); err != nil {
		w.log.Debug("could not restore mode", "path", target, "error", err)
	}
	if src.ModTime.IsZero() {
		return
	}
	if err := w.fs.Chtimes(target, src.ModTime, src.ModTime); err != nil {
		w.log.Debug("could not restore times", "path", target, "error", err)
	}
}

// included applies the hidden-file and filter rules relative to the root
// being transferred.
func (w *Worker) included(e fsys.PathEntry) bool {
	if w.plan.Flags.Has(job.SkipHidden) && filter.IsHidden(e.Path) {
		return false
	}
	if w.filter.Empty() {
		return true
	}
	rel, err := filepath.Rel(w.root, e.Path)
	if err != nil {
		return true
	}
	return w.filter.Match(rel, e.IsDir(), e.Size)
}

// nextFree returns the first "name (N).ext" sibling of path that does not
// exist. Directories and dotfiles keep their whole name as the stem.
func (w *Worker) nextFree(path string) string {
	dir, base := filepath.Split(path)
	stem, ext := base, ""
	if e, err := w.fs.Stat(path); err != nil || !e.IsDir() {
		if x := filepath.Ext(base); x != "" && x != base {
			stem, ext = strings.TrimSuffix(base, x), x
		}
	}
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := w.fs.Stat(candidate); err != nil {
			return candidate
		}
	}
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// within reports whether p lies strictly below dir.
func within(dir, p string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
