// Package statistics measures the total size and entry counts of a set of
// source paths on a background goroutine, with throttled notifications and
// pause/resume/stop control.
package statistics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/stats"
)

var (
	// ErrRunning is returned when a job is reconfigured or restarted while
	// a run is in progress.
	ErrRunning = errors.New("statistics job is running")
	ErrNoRoots = errors.New("no roots given")
)

// Option configures a Job.
type Option func(*Job)

// WithEvents routes notifications to d.
func WithEvents(d *event.Dispatcher) Option { return func(j *Job) { j.events = d } }

// WithSettings overrides config.DefaultSettings.
func WithSettings(s config.Settings) Option { return func(j *Job) { j.settings = s } }

// WithFilter applies include/exclude rules below the roots.
func WithFilter(c *filter.Chain) Option { return func(j *Job) { j.filter = c } }

func WithLogger(l *slog.Logger) Option { return func(j *Job) { j.log = l } }

// WithParentGate makes the traversal pause and stop with g as well, so an
// operation measuring its sources can be paused during the pre-pass.
func WithParentGate(g *job.Gate) Option { return func(j *Job) { j.parent = g } }

// WithJobID tags emitted events.
func WithJobID(id string) Option { return func(j *Job) { j.id = id } }

// Job is a restartable statistics job. One run at a time.
type Job struct {
	provider fsys.Provider
	events   *event.Dispatcher
	filter   *filter.Chain
	log      *slog.Logger
	sizes    *stats.Sizes
	gate     *job.Gate
	parent   *job.Gate
	done     chan struct{}
	id       string
	settings config.Settings
	mu       sync.Mutex
	hints    job.Flags
}

func New(provider fsys.Provider, opts ...Option) *Job {
	j := &Job{
		provider: provider,
		settings: config.DefaultSettings(),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(j)
	}
	j.sizes = stats.NewSizes(j.settings.ProgressUnit)
	return j
}

// SetFileHints replaces the flags used by the next run.
func (j *Job) SetFileHints(f job.Flags) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.gate != nil && j.gate.Active() {
		return ErrRunning
	}
	j.hints = f
	return nil
}

func (j *Job) FileHints() job.Flags {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.hints
}

// Start measures roots on a new goroutine. It returns once the job is
// Running.
func (j *Job) Start(roots []string) error {
	w, err := j.begin(roots)
	if err != nil {
		return err
	}
	go j.run(w)
	return nil
}

// Run measures roots on the calling goroutine and returns the final
// counters. Cancelling ctx stops the run.
func (j *Job) Run(ctx context.Context, roots []string) (stats.SizeInfo, error) {
	w, err := j.begin(roots)
	if err != nil {
		return stats.SizeInfo{}, err
	}
	stop := context.AfterFunc(ctx, j.Stop)
	defer stop()
	if err := j.run(w); err != nil {
		return j.sizes.Snapshot(), err
	}
	return j.sizes.Snapshot(), nil
}

func (j *Job) begin(roots []string) (*walker, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.gate != nil && j.gate.Active() {
		j.log.Debug("statistics: reject start while running", "job", j.id)
		return nil, ErrRunning
	}
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	j.sizes.Reset()
	j.gate = job.NewGate(func(s job.State, o job.Outcome) {
		j.events.Emit(event.Event{Type: event.StateChanged, JobID: j.id, State: s, Outcome: o})
	})
	j.done = make(chan struct{})
	w := newWalker(j, roots)
	j.gate.Begin()
	return w, nil
}

func (j *Job) run(w *walker) error {
	defer close(w.done)
	started := time.Now()

	j.emitData()
	stopTicker := j.startTicker()

	err := w.walk()

	stopTicker()
	j.emitData()
	j.events.EmitWith(func() event.Event {
		return event.Event{Type: event.SizeChanged, JobID: j.id, Size: j.sizes.TotalSize()}
	})

	outcome := job.Completed
	if err != nil {
		outcome = job.Cancelled
	}
	j.log.Debug("statistics finished",
		"job", j.id, "outcome", outcome.String(), "elapsed", time.Since(started),
		"size", j.sizes.TotalSize(), "files", j.sizes.FileCount(), "dirs", j.sizes.DirectoryCount())
	w.gate.Finish(outcome)
	return err
}

func (j *Job) emitData() {
	j.events.EmitWith(func() event.Event {
		s := j.sizes.Snapshot()
		return event.Event{
			Type: event.DataNotify, JobID: j.id,
			Size: s.TotalSize, Files: s.FileCount, Dirs: s.DirectoryCount,
		}
	})
}

// startTicker emits DataNotify on a fixed period, also while paused. The
// returned func stops the ticker and waits for it.
func (j *Job) startTicker() func() {
	if j.events == nil {
		return func() {}
	}
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		t := time.NewTicker(j.settings.DataNotifyInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				j.emitData()
			case <-quit:
				return
			}
		}
	}()
	return func() {
		close(quit)
		<-exited
	}
}

func (j *Job) current() (*job.Gate, chan struct{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.gate, j.done
}

// Stop cancels the run. It is idempotent and never blocks.
func (j *Job) Stop() {
	if g, _ := j.current(); g != nil {
		g.Stop()
	}
}

// TogglePause flips between Running and Paused.
func (j *Job) TogglePause() {
	if g, _ := j.current(); g != nil {
		g.Toggle()
	}
}

// State returns the lifecycle state of the last run.
func (j *Job) State() job.State {
	g, _ := j.current()
	if g == nil {
		return job.Idle
	}
	s, _ := g.State()
	return s
}

// Wait blocks until the current run has emitted its final notification.
func (j *Job) Wait() {
	if _, done := j.current(); done != nil {
		<-done
	}
}

func (j *Job) SizeInfo() stats.SizeInfo { return j.sizes.Snapshot() }
func (j *Job) TotalSize() int64         { return j.sizes.TotalSize() }
func (j *Job) TotalProgressSize() int64 { return j.sizes.TotalProgressSize() }
func (j *Job) FilesCount() int64        { return j.sizes.FileCount() }

// DirectoriesCount returns the directory count, optionally without the
// single root directory itself.
func (j *Job) DirectoriesCount(includeSelf bool) int64 {
	n := j.sizes.DirectoryCount()
	if includeSelf {
		return n
	}
	return max(n-1, 0)
}

func newWalker(j *Job, roots []string) *walker {
	w := &walker{
		provider: j.provider,
		settings: j.settings,
		filter:   j.filter,
		log:      j.log,
		sizes:    j.sizes,
		gate:     j.gate,
		parent:   j.parent,
		done:     j.done,
		hints:    j.hints,
		roots:    roots,
		visited:  make(map[string]struct{}),
		linked:   make(map[string]struct{}),
		sizeNote: &rate.Sometimes{Interval: j.settings.SizeChangeInterval},
	}
	w.mounts, _ = j.provider.(fsys.MountResolver)
	w.emitSize = func() {
		j.events.EmitWith(func() event.Event {
			return event.Event{Type: event.SizeChanged, JobID: j.id, Size: j.sizes.TotalSize()}
		})
	}
	return w
}
