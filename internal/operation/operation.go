// Package operation executes one transfer plan (copy, cut, delete, trash or
// restore) on a single goroutine, with progress, pause/resume, cancellation
// and blocking error decisions.
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/statistics"
	"github.com/bamsammich/ferry/internal/stats"
)

// Config wires a Worker. Plan and FS are required; everything else has a
// usable default.
type Config struct {
	FS       fsys.FS
	Trash    Trasher
	Gate     *job.Gate
	Decider  *job.Decider
	Events   *event.Dispatcher
	Stats    *stats.Collector
	Filter   *filter.Chain
	Limiter  *rate.Limiter
	Logger   *slog.Logger
	JobID    string
	Plan     job.Plan
	Settings config.Settings
}

// Summary is the terminal report of a run.
type Summary struct {
	// Err aggregates per-entry failures as a *multierror.Error, or is nil.
	Err        error
	Incomplete []string
	Entries    int64
	Bytes      int64
	Skipped    int64
	Failed     int64
	Elapsed    time.Duration
	Outcome    job.Outcome
}

// Worker executes one plan. It is single use.
type Worker struct {
	fs          fsys.FS
	trash       Trasher
	gate        *job.Gate
	decider     *job.Decider
	events      *event.Dispatcher
	stats       *stats.Collector
	filter      *filter.Chain
	limiter     *rate.Limiter
	log         *slog.Logger
	errs        *multierror.Error
	progress    *rate.Sometimes
	entryNote   *rate.Sometimes
	stack       map[fileID]bool
	jobID       string
	root        string
	partial     string
	incomplete  []string
	rootCharge  []int64
	settings    config.Settings
	plan        job.Plan
	needBytes   int64
	expected    int64
	unit        int64
	chunk       int
	crossDevice bool
}

// Controls builds the gate and decider for one run, wired to emit
// StateChanged, DecisionRequested and DecisionResolved events.
func Controls(events *event.Dispatcher, jobID string) (*job.Gate, *job.Decider) {
	gate := job.NewGate(func(s job.State, o job.Outcome) {
		events.Emit(event.Event{Type: event.StateChanged, JobID: jobID, State: s, Outcome: o})
	})
	decider := job.NewDecider(gate, jobID, job.DecisionHooks{
		Requested: func(r job.Request) {
			events.Emit(event.Event{Type: event.DecisionRequested, JobID: jobID, Path: r.Source, Dest: r.Dest, Request: &r})
		},
		Resolved: func(r job.Request, d job.Decision) {
			events.Emit(event.Event{Type: event.DecisionResolved, JobID: jobID, Path: r.Source, Dest: r.Dest, Request: &r, Decision: d})
		},
	})
	return gate, decider
}

func New(cfg Config) *Worker {
	w := &Worker{
		fs:       cfg.FS,
		trash:    cfg.Trash,
		gate:     cfg.Gate,
		decider:  cfg.Decider,
		events:   cfg.Events,
		stats:    cfg.Stats,
		filter:   cfg.Filter,
		limiter:  cfg.Limiter,
		log:      cfg.Logger,
		jobID:    cfg.JobID,
		plan:     cfg.Plan,
		settings: cfg.Settings,
	}
	if w.settings.ChunkSize <= 0 || w.settings.ProgressUnit <= 0 {
		w.settings = config.DefaultSettings()
	}
	if w.gate == nil || w.decider == nil {
		w.gate, w.decider = Controls(w.events, w.jobID)
	}
	if w.stats == nil {
		w.stats = stats.NewCollector()
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	if w.limiter == nil && w.settings.BWLimit > 0 {
		w.limiter = NewBWLimiter(w.settings.BWLimit)
	}
	if w.settings.OnConflict != job.NoDecision {
		w.decider.Remember(job.FileExists, w.settings.OnConflict)
	}
	if w.settings.OnError != job.NoDecision {
		for k := job.UnknownError; k <= job.TargetInsideSource; k++ {
			if k != job.FileExists {
				w.decider.Remember(k, w.settings.OnError)
			}
		}
	}
	w.unit = w.settings.ProgressUnit
	w.chunk = w.settings.ChunkSize
	w.progress = &rate.Sometimes{Interval: w.settings.ProgressInterval}
	w.entryNote = &rate.Sometimes{Interval: w.settings.ProgressInterval}
	return w
}

// Gate exposes the run's pause/stop control.
func (w *Worker) Gate() *job.Gate { return w.gate }

// Decider exposes the run's decision channel.
func (w *Worker) Decider() *job.Decider { return w.decider }

// Stats exposes the run's counters.
func (w *Worker) Stats() *stats.Collector { return w.stats }

// Run executes the plan and returns once the run reached a terminal state.
// JobFinished and then StateChanged(Stopped) are the last events emitted.
func (w *Worker) Run(ctx context.Context) Summary {
	started := time.Now()
	w.gate.Begin()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unhook := context.AfterFunc(ctx, w.gate.Stop)
	defer unhook()
	go func() {
		select {
		case <-w.gate.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	w.log.Info("operation started", "job", w.jobID, "kind", w.plan.Kind.String(),
		"entries", len(w.plan.Pairs), "flags", w.plan.Flags.String())

	err := w.initialize(ctx)
	if err == nil {
		err = w.execute(ctx)
	}

	outcome := job.Completed
	switch {
	case err == nil:
	case errors.Is(err, job.ErrStopped):
		outcome = job.Cancelled
	default:
		outcome = job.Failed
		w.errs = multierror.Append(w.errs, err)
	}

	snap := w.stats.Snapshot()
	sum := Summary{
		Outcome:    outcome,
		Entries:    snap.EntriesDone,
		Bytes:      snap.BytesWritten,
		Skipped:    snap.EntriesSkipped,
		Failed:     snap.EntriesFailed,
		Incomplete: w.incomplete,
		Err:        w.errs.ErrorOrNil(),
		Elapsed:    time.Since(started),
	}

	w.emitProgress()
	w.events.Emit(event.Event{Type: event.JobFinished, JobID: w.jobID, Outcome: outcome, Summary: sum})
	w.log.Info("operation finished", "job", w.jobID, "outcome", outcome.String(),
		"entries", sum.Entries, "bytes", sum.Bytes, "skipped", sum.Skipped,
		"failed", sum.Failed, "elapsed", sum.Elapsed)
	w.gate.Finish(outcome)
	return sum
}

// initialize measures every root for progress totals and checks free space.
func (w *Worker) initialize(ctx context.Context) error {
	w.rootCharge = make([]int64, len(w.plan.Pairs))

	var files, dirs, total int64
	switch w.plan.Kind {
	case job.Trash, job.Restore:
		for i := range w.plan.Pairs {
			w.rootCharge[i] = w.unit
		}
		files, total = int64(len(w.plan.Pairs)), int64(len(w.plan.Pairs))*w.unit
	default:
		hints := job.NoFollowSymlink
		if w.plan.Kind == job.Copy && w.plan.Flags.Has(job.CopyLinkTargets) {
			hints = 0
		}
		hints |= w.plan.Flags & job.SkipHidden

		sj := statistics.New(w.fs,
			statistics.WithSettings(w.settings),
			statistics.WithFilter(w.filter),
			statistics.WithLogger(w.log),
			statistics.WithJobID(w.jobID),
			statistics.WithParentGate(w.gate))
		if err := sj.SetFileHints(hints); err != nil {
			return err
		}
		for i, pair := range w.plan.Pairs {
			info, err := sj.Run(ctx, []string{pair.Source})
			if err != nil {
				return err
			}
			files += info.FileCount
			dirs += info.DirectoryCount
			if w.plan.Kind == job.Delete {
				w.rootCharge[i] = (info.FileCount + info.DirectoryCount) * w.unit
			} else {
				w.rootCharge[i] = info.TotalProgressSize
				if w.needsSpace(pair) {
					w.needBytes += info.TotalSize
				}
			}
			total += w.rootCharge[i]
		}
	}
	w.stats.SetTotals(files, dirs, total)
	w.emitProgress()

	if err := w.gate.Check(); err != nil {
		return err
	}
	return w.checkSpace(ctx)
}

func (w *Worker) needsSpace(pair job.Pair) bool {
	switch w.plan.Kind {
	case job.Copy:
		return true
	case job.Cut:
		return !w.sameDevice(pair)
	}
	return false
}

func (w *Worker) sameDevice(pair job.Pair) bool {
	src, err := w.fs.Stat(pair.Source)
	if err != nil {
		return false
	}
	parent, err := w.fs.Stat(filepath.Dir(pair.Dest))
	if err != nil {
		return false
	}
	return src.Dev == parent.Dev
}

// checkSpace raises a NoSpace decision while the destination is short.
func (w *Worker) checkSpace(ctx context.Context) error {
	sr, ok := w.fs.(fsys.SpaceReporter)
	if !ok || w.needBytes == 0 || len(w.plan.Pairs) == 0 {
		return nil
	}
	dir := filepath.Dir(w.plan.Pairs[0].Dest)
	for {
		free, err := sr.FreeSpace(dir)
		if err != nil {
			w.log.Debug("free space unknown", "path", dir, "error", err)
			return nil
		}
		if free >= w.needBytes {
			return nil
		}
		dec, err := w.decider.Ask(ctx, job.Request{
			Kind:    job.NoSpace,
			Source:  w.plan.Pairs[0].Source,
			Dest:    dir,
			Message: fmt.Sprintf("need %s, %s available", stats.FormatBytes(w.needBytes), stats.FormatBytes(free)),
			Allowed: []job.Decision{job.Retry, job.Skip, job.Cancel},
		})
		if err != nil {
			return err
		}
		switch dec {
		case job.Retry:
			continue
		case job.Cancel:
			w.gate.Stop()
			return job.ErrStopped
		default:
			return nil
		}
	}
}

func (w *Worker) execute(ctx context.Context) error {
	for i, pair := range w.plan.Pairs {
		if err := w.gate.Check(); err != nil {
			return err
		}
		var err error
		switch w.plan.Kind {
		case job.Copy:
			err = w.transferRoot(ctx, pair, false)
		case job.Cut:
			err = w.transferRoot(ctx, pair, true)
		case job.Delete:
			err = w.deleteRoot(ctx, pair.Source)
		case job.Trash:
			err = w.trashEntry(ctx, pair.Source)
		case job.Restore:
			err = w.restoreEntry(ctx, pair)
		default:
			err = fmt.Errorf("unsupported operation %s", w.plan.Kind)
		}
		if err != nil {
			return err
		}
		w.settle(i)
	}
	return nil
}
