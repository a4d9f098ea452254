package job

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// DecisionHooks observe the decision round trips of a Decider.
type DecisionHooks struct {
	Requested func(Request)
	Resolved  func(Request, Decision)
}

type pending struct {
	ch  chan Decision
	req Request
}

// Decider turns recoverable errors into blocking prompts. Ask parks the
// calling goroutine until Resolve is called with a matching request ID or
// the gate stops. "All" answers are remembered per ErrorKind for the rest
// of the run.
type Decider struct {
	gate    *Gate
	hooks   DecisionHooks
	all     map[ErrorKind]Decision
	jobID   string
	pending []*pending
	mu      sync.Mutex
}

func NewDecider(gate *Gate, jobID string, hooks DecisionHooks) *Decider {
	return &Decider{
		gate:  gate,
		jobID: jobID,
		hooks: hooks,
		all:   make(map[ErrorKind]Decision),
	}
}

// Remember presets an answer for kind, as if an "All" answer had been
// given. It is how configured policies such as on_conflict are applied.
func (d *Decider) Remember(kind ErrorKind, dec Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all[kind] = dec
}

// Ask blocks until a decision for req arrives. The returned decision is
// always the single form (SkipAll comes back as Skip). When the gate stops
// or ctx ends first, Ask returns Cancel and ErrStopped.
func (d *Decider) Ask(ctx context.Context, req Request) (Decision, error) {
	d.mu.Lock()
	if cached, ok := d.all[req.Kind]; ok && req.Allows(cached) {
		d.mu.Unlock()
		return cached.Single(), nil
	}
	req.ID = uuid.NewString()
	req.JobID = d.jobID
	p := &pending{req: req, ch: make(chan Decision, 1)}
	d.pending = append(d.pending, p)
	if d.hooks.Requested != nil {
		d.hooks.Requested(req)
	}
	d.mu.Unlock()

	select {
	case dec := <-p.ch:
		if dec.IsAll() {
			d.mu.Lock()
			d.all[req.Kind] = dec
			d.mu.Unlock()
		}
		return dec.Single(), nil
	case <-d.gate.Done():
	case <-ctx.Done():
	}
	d.drop(req.ID)
	return Cancel, fmt.Errorf("decision %s for %s: %w", req.Kind, req.Source, ErrStopped)
}

func (d *Decider) drop(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = slices.DeleteFunc(d.pending, func(p *pending) bool { return p.req.ID == id })
}

// Resolve answers a pending request. It returns false, doing nothing, when
// the ID is unknown or already answered, when dec is not offered, or once
// the gate is stopping. Hooks run under the decider lock, so a Resolved
// notification always precedes the waiter giving up on a stopped gate.
func (d *Decider) Resolve(id string, dec Decision) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gate.Stopping() {
		return false
	}
	i := slices.IndexFunc(d.pending, func(p *pending) bool { return p.req.ID == id })
	if i < 0 || !d.pending[i].req.Allows(dec) {
		return false
	}
	p := d.pending[i]
	d.pending = slices.Delete(d.pending, i, i+1)

	if d.hooks.Resolved != nil {
		d.hooks.Resolved(p.req, dec)
	}
	p.ch <- dec
	return true
}

// Pending lists unanswered requests in the order they were raised.
func (d *Decider) Pending() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, len(d.pending))
	for i, p := range d.pending {
		out[i] = p.req
	}
	return out
}
