package statistics

import (
	"log/slog"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/stats"
)

type queued struct {
	path string
	root string
}

// walker is the state of one run. It is owned by the run goroutine; only
// sizes is read concurrently.
type walker struct {
	provider fsys.Provider
	mounts   fsys.MountResolver
	filter   *filter.Chain
	log      *slog.Logger
	sizes    *stats.Sizes
	gate     *job.Gate
	parent   *job.Gate
	sizeNote *rate.Sometimes
	emitSize func()
	done     chan struct{}
	visited  map[string]struct{}
	linked   map[string]struct{}
	roots    []string
	queue    []queued
	settings config.Settings
	hints    job.Flags
}

// check is the suspension point: it blocks while either the run or the
// gate of the job it measures for is paused.
func (w *walker) check() error {
	if w.parent != nil {
		if err := w.parent.Check(); err != nil {
			return err
		}
	}
	return w.gate.Check()
}

func (w *walker) seen(p string) bool {
	_, v := w.visited[p]
	_, l := w.linked[p]
	return v || l
}

func (w *walker) walk() error {
	follow := !w.hints.Has(job.NoFollowSymlink)

	if w.hints.Has(job.ExcludeSourceFile) {
		if err := w.excludedRoots(follow); err != nil {
			return err
		}
	} else {
		for _, root := range w.roots {
			root = filepath.Clean(root)
			if _, dup := w.visited[root]; dup {
				continue
			}
			if e, err := w.provider.Stat(root); err != nil {
				w.log.Debug("statistics: skip root", "path", root, "error", err)
			} else {
				// Roots are measured even when they are pseudo mounts.
				w.process(e, root, follow, false)
			}
			w.visited[root] = struct{}{}
			if err := w.check(); err != nil {
				return err
			}
		}
		if w.hints.Has(job.SingleDepth) {
			n, err := w.singleDepthCount()
			if err != nil {
				return err
			}
			w.sizes.SetFiles(n)
		}
	}

	if w.hints.Has(job.SingleDepth) {
		w.queue = nil
		return nil
	}
	return w.drain(follow)
}

// excludedRoots queues the roots without counting them.
func (w *walker) excludedRoots(follow bool) error {
	var tally int64
	defer func() {
		if w.hints.Has(job.SingleDepth) {
			w.sizes.SetFiles(tally)
		}
	}()

	for _, root := range w.roots {
		if err := w.check(); err != nil {
			return err
		}
		root = filepath.Clean(root)
		if _, ok := w.visited[root]; ok {
			continue
		}
		w.visited[root] = struct{}{}

		e, err := w.provider.Stat(root)
		if err != nil {
			w.log.Debug("statistics: skip root", "path", root, "error", err)
			continue
		}

		if w.hints.Has(job.SingleDepth) && w.dirLike(e) {
			n, err := w.countChildren(root, w.hints.Has(job.DeepCount))
			tally += n
			if err != nil {
				return err
			}
		} else {
			tally++
		}

		if e.IsSymlink() {
			if !follow {
				continue
			}
			target := fsys.LinkTarget(e)
			if w.seen(target) {
				continue
			}
			t, err := w.provider.Stat(target)
			if err != nil || t.IsSymlink() {
				continue
			}
			w.linked[target] = struct{}{}
			e = t
		}
		if e.IsDir() {
			w.queue = append(w.queue, queued{path: root, root: root})
		}
	}
	return nil
}

func (w *walker) dirLike(e fsys.PathEntry) bool {
	if e.IsDir() {
		return true
	}
	if !e.IsSymlink() {
		return false
	}
	t, err := fsys.Resolve(w.provider, e)
	return err == nil && t.IsDir()
}

func (w *walker) singleDepthCount() (int64, error) {
	var total int64
	for _, root := range w.roots {
		root = filepath.Clean(root)
		e, err := w.provider.Stat(root)
		if err != nil {
			continue
		}
		if !w.dirLike(e) {
			total++
			continue
		}
		n, err := w.countChildren(root, w.hints.Has(job.DeepCount))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// countChildren counts the entries of dir. Subdirectories count as one
// unless deep is set, in which case their contents are counted instead.
func (w *walker) countChildren(dir string, deep bool) (int64, error) {
	it, err := w.provider.Iterate(dir)
	if err != nil {
		w.log.Debug("statistics: count failed", "path", dir, "error", err)
		return 0, nil
	}
	defer it.Close()

	var n int64
	for e, ok := it.Next(); ok; e, ok = it.Next() {
		if err := w.check(); err != nil {
			return n, err
		}
		if w.hints.Has(job.SkipHidden) && filter.IsHidden(e.Path) {
			continue
		}
		if e.IsDir() && deep {
			sub, err := w.countChildren(e.Path, deep)
			n += sub
			if err != nil {
				return n, err
			}
			continue
		}
		n++
	}
	return n, nil
}

// drain walks the directory queue breadth first.
func (w *walker) drain(follow bool) error {
	for len(w.queue) > 0 {
		if err := w.check(); err != nil {
			return err
		}
		dir := w.queue[0]
		w.queue = w.queue[1:]
		if err := w.list(dir, follow); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) list(dir queued, follow bool) error {
	it, err := w.provider.Iterate(dir.path)
	if err != nil {
		w.log.Debug("statistics: cannot list", "path", dir.path, "error", err)
		return nil
	}
	defer it.Close()

	for e, ok := it.Next(); ok; e, ok = it.Next() {
		if w.seen(e.Path) {
			continue
		}
		if !w.included(dir.root, e) {
			continue
		}
		w.process(e, dir.root, follow, true)
		w.visited[e.Path] = struct{}{}
		if err := w.check(); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		w.log.Debug("statistics: listing interrupted", "path", dir.path, "error", err)
	}
	return nil
}

func (w *walker) included(root string, e fsys.PathEntry) bool {
	if w.hints.Has(job.SkipHidden) && filter.IsHidden(e.Path) {
		return false
	}
	if w.filter.Empty() {
		return true
	}
	rel, err := filepath.Rel(root, e.Path)
	if err != nil {
		return true
	}
	return w.filter.Match(rel, e.IsDir(), e.Size)
}

// process classifies one entry and updates the counters.
func (w *walker) process(e fsys.PathEntry, root string, follow, pseudoCheck bool) {
	target, resolved := e, true
	if e.IsSymlink() {
		t, err := fsys.Resolve(w.provider, e)
		if err != nil {
			resolved = false
		} else {
			target = t
		}
	}

	if target.IsDir() && resolved {
		w.processDir(e, target, root, follow, pseudoCheck)
		return
	}
	w.processFile(e, target, resolved)
}

func (w *walker) processFile(e, target fsys.PathEntry, resolved bool) {
	if e.IsSymlink() {
		hop := fsys.LinkTarget(e)
		if w.seen(hop) {
			return
		}
		w.linked[hop] = struct{}{}
	}
	w.sizes.AddFiles(1)

	if w.settings.IsPseudoFile(e.Path) ||
		(e.IsSymlink() && w.settings.IsPseudoFile(fsys.LinkTarget(e))) {
		return
	}
	if !resolved {
		// Broken or looping link: charged like a link to an empty file.
		w.sizes.Charge(0)
		return
	}
	if w.skipSpecial(target.Kind) {
		return
	}

	size := target.Size
	if size > 0 {
		w.sizes.AddSize(size)
		w.sizeNote.Do(w.emitSize)
	}
	if e.IsSymlink() {
		size = 0
	}
	w.sizes.Charge(size)
}

func (w *walker) skipSpecial(k fsys.Kind) bool {
	switch k {
	case fsys.Regular:
		return false
	case fsys.CharDevice:
		return !w.hints.Has(job.DontSkipCharDeviceFile)
	case fsys.BlockDevice:
		return !w.hints.Has(job.DontSkipBlockDeviceFile)
	case fsys.FIFO:
		return !w.hints.Has(job.DontSkipFIFOFile)
	case fsys.Socket:
		return !w.hints.Has(job.DontSkipSocketFile)
	default:
		return true
	}
}

func (w *walker) processDir(e, target fsys.PathEntry, root string, follow, pseudoCheck bool) {
	w.sizes.Charge(0)
	if e.IsSymlink() {
		if !follow {
			w.sizes.AddDirs(1)
			return
		}
		if w.seen(target.Path) {
			return
		}
		w.linked[target.Path] = struct{}{}
	}
	w.sizes.AddDirs(1)

	if pseudoCheck && w.pseudoMount(target.Path) {
		w.log.Debug("statistics: not descending into pseudo filesystem", "path", target.Path)
		return
	}
	if !w.hints.Has(job.SingleDepth) {
		w.queue = append(w.queue, queued{path: e.Path, root: root})
	}
}

// pseudoMount reports whether dir is the root of a deny-listed mount.
func (w *walker) pseudoMount(dir string) bool {
	if w.mounts == nil {
		return false
	}
	m, err := w.mounts.MountOf(dir)
	if err != nil || filepath.Clean(m.Root) != filepath.Clean(dir) {
		return false
	}
	for _, dev := range w.settings.PseudoDevices {
		if m.Device != dev && m.FSType != dev {
			continue
		}
		switch {
		case dev == "proc" && w.hints.Has(job.DontSkipPROCStorage):
		case dev == "avfsd" && w.hints.Has(job.DontSkipAVFSDStorage):
		default:
			return true
		}
	}
	return false
}
