// Package engine is the control surface for running operations: it owns the
// event dispatcher, starts one operation worker at a time and lets any
// goroutine pause, resume, cancel, answer decisions and read progress.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/journal"
	"github.com/bamsammich/ferry/internal/operation"
	"github.com/bamsammich/ferry/internal/stats"
)

var (
	// ErrBusy is returned by Start while a run is active.
	ErrBusy = errors.New("a run is already active")
	// ErrNotStarted is returned by Wait before the first Start.
	ErrNotStarted = errors.New("no run was started")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("handle closed")
)

// Responder answers a decision request. It runs on its own goroutine and
// may block, for example on a terminal prompt.
type Responder func(ctx context.Context, req job.Request) job.Decision

// Options configures a Handle. Everything is optional.
type Options struct {
	FS        fsys.FS
	Trash     operation.Trasher
	Filter    *filter.Chain
	Journal   *journal.Journal
	Responder Responder
	Logger    *slog.Logger
	Observers []event.Observer
	Settings  config.Settings
}

// Summary is the terminal report of a run.
type Summary = operation.Summary

// Progress is a point-in-time view of the current run.
type Progress struct {
	Done  int64 // progress units
	Total int64
	Files int64
	Dirs  int64
	Bytes int64
	Speed float64 // progress units per second, 5s rolling
	ETA   time.Duration
}

// Handle runs operations one at a time. Its methods are safe for concurrent
// use.
type Handle struct {
	opts    Options
	events  *event.Dispatcher
	log     *slog.Logger
	gate    *job.Gate
	decider *job.Decider
	stats   *stats.Collector
	done    chan struct{}
	id      string
	summary operation.Summary
	mu      sync.Mutex
	closed  bool
}

func NewHandle(opts Options) *Handle {
	if opts.FS == nil {
		opts.FS = fsys.NewLocal()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Settings.ChunkSize <= 0 {
		opts.Settings = config.DefaultSettings()
	}
	h := &Handle{
		opts: opts,
		id:   uuid.NewString(),
	}
	h.log = opts.Logger.With("job", h.id)
	observers := append([]event.Observer{}, opts.Observers...)
	if opts.Responder != nil {
		observers = append(observers, event.ObserverFunc(h.respond))
	}
	h.events = event.NewDispatcher(observers...)
	return h
}

// ID identifies the handle in events and logs.
func (h *Handle) ID() string { return h.id }

// respond hands each decision request to the Responder without blocking
// event delivery.
func (h *Handle) respond(e event.Event) {
	if e.Type != event.DecisionRequested || e.Request == nil {
		return
	}
	req := *e.Request
	h.mu.Lock()
	gate := h.gate
	h.mu.Unlock()
	if gate == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-gate.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
		dec := h.opts.Responder(ctx, req)
		if ctx.Err() != nil {
			return
		}
		if !h.Resolve(req.ID, dec) {
			h.log.Debug("responder answer ignored", "request", req.ID, "decision", dec.String())
		}
	}()
}

// Start launches plan on a new goroutine. ctx bounds the run: cancelling it
// is the same as Cancel.
func (h *Handle) Start(ctx context.Context, plan job.Plan) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if h.done != nil {
		select {
		case <-h.done:
		default:
			return ErrBusy
		}
	}

	gate, decider := operation.Controls(h.events, h.id)
	gate.Begin()
	h.gate, h.decider = gate, decider
	h.stats = stats.NewCollector()
	h.done = make(chan struct{})
	h.summary = operation.Summary{}

	w := operation.New(operation.Config{
		FS:       h.opts.FS,
		Trash:    h.opts.Trash,
		Gate:     gate,
		Decider:  decider,
		Events:   h.events,
		Stats:    h.stats,
		Filter:   h.opts.Filter,
		Logger:   h.log,
		JobID:    h.id,
		Plan:     plan,
		Settings: h.opts.Settings,
	})

	ctx, cancel := context.WithCancel(ctx)
	done := h.done
	started := time.Now()
	go func() {
		defer cancel()
		sum := w.Run(ctx)
		h.record(plan, sum, started)

		h.mu.Lock()
		h.summary = sum
		h.mu.Unlock()
		close(done)
	}()
	return nil
}

func (h *Handle) record(plan job.Plan, sum operation.Summary, started time.Time) {
	if h.opts.Journal == nil {
		return
	}
	e := journal.Entry{
		ID:         h.id,
		Kind:       plan.Kind.String(),
		Outcome:    sum.Outcome.String(),
		Sources:    plan.Sources(),
		Incomplete: sum.Incomplete,
		Entries:    sum.Entries,
		Bytes:      sum.Bytes,
		Skipped:    sum.Skipped,
		Failed:     sum.Failed,
		Started:    started,
		Finished:   started.Add(sum.Elapsed),
	}
	for _, p := range plan.Pairs {
		if p.Dest != "" {
			e.Dests = append(e.Dests, p.Dest)
		}
	}
	if sum.Err != nil {
		e.Error = sum.Err.Error()
	}
	if _, err := h.opts.Journal.Record(context.Background(), e); err != nil {
		h.log.Warn("could not record run", "error", err)
	}
}

func (h *Handle) current() (*job.Gate, *job.Decider, *stats.Collector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gate, h.decider, h.stats
}

func (h *Handle) Pause() bool {
	if g, _, _ := h.current(); g != nil {
		return g.Pause()
	}
	return false
}

func (h *Handle) Resume() bool {
	if g, _, _ := h.current(); g != nil {
		return g.Resume()
	}
	return false
}

// TogglePause flips between Running and Paused and returns the new state.
func (h *Handle) TogglePause() job.State {
	if g, _, _ := h.current(); g != nil {
		return g.Toggle()
	}
	return job.Idle
}

// Cancel stops the current run. It wakes a paused worker and any pending
// decision; calling it again, or with nothing running, does nothing.
func (h *Handle) Cancel() {
	if g, _, _ := h.current(); g != nil {
		g.Stop()
	}
}

// State reports the current run's state, Idle before the first Start.
func (h *Handle) State() (job.State, job.Outcome) {
	if g, _, _ := h.current(); g != nil {
		return g.State()
	}
	return job.Idle, job.NoOutcome
}

func (h *Handle) Progress() Progress {
	_, _, c := h.current()
	if c == nil {
		return Progress{}
	}
	s := c.Snapshot()
	done := s.ProgressDone
	if s.ProgressTotal > 0 {
		done = min(done, s.ProgressTotal)
	}
	return Progress{
		Done:  done,
		Total: s.ProgressTotal,
		Files: s.EntriesDone,
		Dirs:  s.DirsCreated,
		Bytes: s.BytesWritten,
		Speed: c.RollingSpeed(5),
		ETA:   c.ETA(),
	}
}

// Stats exposes the current run's counters, nil before the first Start.
func (h *Handle) Stats() *stats.Collector {
	_, _, c := h.current()
	return c
}

// Resolve answers a pending decision. Unknown or already answered IDs, and
// decisions the request does not offer, return false.
func (h *Handle) Resolve(requestID string, d job.Decision) bool {
	if _, dec, _ := h.current(); dec != nil {
		return dec.Resolve(requestID, d)
	}
	return false
}

// Pending lists unanswered decision requests.
func (h *Handle) Pending() []job.Request {
	if _, dec, _ := h.current(); dec != nil {
		return dec.Pending()
	}
	return nil
}

// Wait blocks until the current run finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Summary, error) {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done == nil {
		return Summary{}, ErrNotStarted
	}
	select {
	case <-done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.summary, nil
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

// Close cancels any active run, waits for it and flushes pending events.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	done := h.done
	h.mu.Unlock()

	h.Cancel()
	if done != nil {
		<-done
	}
	h.events.Close()
}
