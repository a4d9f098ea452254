package operation

import (
	"sync"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/fsys"
)

const defaultChunk = 1 << 20 // 1 MiB

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, defaultChunk)
		return &b
	},
}

func (w *Worker) getBuffer() *[]byte {
	if w.chunk == defaultChunk {
		return bufPool.Get().(*[]byte) //nolint:forcetypeassert // pool only holds *[]byte
	}
	b := make([]byte, w.chunk)
	return &b
}

func (w *Worker) putBuffer(b *[]byte) {
	if len(*b) == defaultChunk {
		bufPool.Put(b)
	}
}

// charge is the progress charge of a non-regular or empty entry.
func (w *Worker) charge(e fsys.PathEntry) int64 {
	if e.Kind == fsys.Regular && e.Size > 0 {
		return e.Size
	}
	return w.unit
}

func (w *Worker) advance(n int64) {
	if n <= 0 {
		return
	}
	w.stats.AddProgress(n)
	w.progress.Do(w.emitProgress)
}

// settle tops the numerator up to the cumulative charge of roots 0..i, so
// skipped, renamed and failed subtrees still complete the bar.
func (w *Worker) settle(i int) {
	w.expected += w.rootCharge[i]
	w.advance(w.expected - w.stats.Done())
}

func (w *Worker) emitProgress() {
	w.events.EmitWith(func() event.Event {
		s := w.stats.Snapshot()
		done := s.ProgressDone
		if s.ProgressTotal > 0 {
			done = min(done, s.ProgressTotal)
		}
		return event.Event{
			Type:  event.Progress,
			JobID: w.jobID,
			Done:  done,
			Total: s.ProgressTotal,
			Files: s.EntriesDone,
			Dirs:  s.DirsCreated,
			Size:  s.BytesWritten,
		}
	})
}

func (w *Worker) started(src fsys.PathEntry, dst string) {
	w.events.Emit(event.Event{Type: event.EntryStarted, JobID: w.jobID, Path: src.Path, Dest: dst, Size: src.Size})
}

func (w *Worker) finished(src, dst string, size int64) {
	w.stats.AddEntriesDone(1)
	w.events.Emit(event.Event{Type: event.EntryFinished, JobID: w.jobID, Path: src, Dest: dst, Size: size})
}

func (w *Worker) entryProgress(src, dst string, written int64) {
	w.entryNote.Do(func() {
		w.events.Emit(event.Event{Type: event.EntryProgress, JobID: w.jobID, Path: src, Dest: dst, Size: written})
	})
}
