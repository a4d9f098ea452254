package job

import (
	"errors"
	"sync"
)

// ErrStopped is returned from blocking calls once the job was asked to stop.
var ErrStopped = errors.New("job stopped")

// Gate is the pause/resume/stop state machine of one run. The running
// goroutine calls Check at every suspension point; controllers call Pause,
// Resume and Stop from any goroutine.
type Gate struct {
	cond     *sync.Cond
	done     chan struct{}
	onChange func(State, Outcome)
	mu       sync.Mutex
	state    State
	outcome  Outcome
	stopping bool
}

// NewGate returns an Idle gate. onChange, if non-nil, is called with the
// gate lock held after every transition; it must not call back into the gate.
func NewGate(onChange func(State, Outcome)) *Gate {
	g := &Gate{done: make(chan struct{}), onChange: onChange}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *Gate) setLocked(s State, o Outcome) {
	g.state, g.outcome = s, o
	if g.onChange != nil {
		g.onChange(s, o)
	}
}

// Begin moves Idle to Running. It fails if the gate was already started or
// stopped.
func (g *Gate) Begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Idle || g.stopping {
		return false
	}
	g.setLocked(Running, NoOutcome)
	return true
}

// Pause moves Running to Paused.
func (g *Gate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Running || g.stopping {
		return false
	}
	g.setLocked(Paused, NoOutcome)
	return true
}

// Resume moves Paused to Running.
func (g *Gate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Paused || g.stopping {
		return false
	}
	g.setLocked(Running, NoOutcome)
	g.cond.Broadcast()
	return true
}

// Toggle flips between Running and Paused and returns the resulting state.
// Other states are returned unchanged.
func (g *Gate) Toggle() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopping {
		return g.state
	}
	switch g.state {
	case Running:
		g.setLocked(Paused, NoOutcome)
	case Paused:
		g.setLocked(Running, NoOutcome)
		g.cond.Broadcast()
	}
	return g.state
}

// Stop requests cancellation. It wakes a paused goroutine and any decision
// waiting on Done. Calling it more than once is harmless. The state becomes
// Stopped only when the running goroutine calls Finish; a gate that never
// began is finished immediately as Cancelled.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopping {
		return
	}
	g.stopping = true
	close(g.done)
	g.cond.Broadcast()
	if g.state == Idle {
		g.setLocked(Stopped, Cancelled)
	}
}

// Finish records the terminal state. Only the first call has an effect.
func (g *Gate) Finish(o Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Stopped {
		return
	}
	if !g.stopping {
		g.stopping = true
		close(g.done)
		g.cond.Broadcast()
	}
	g.setLocked(Stopped, o)
}

// Check blocks while paused and returns ErrStopped once Stop was called.
func (g *Gate) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.state == Paused && !g.stopping {
		g.cond.Wait()
	}
	if g.stopping {
		return ErrStopped
	}
	return nil
}

// Stopping reports whether Stop (or Finish) was called.
func (g *Gate) Stopping() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopping
}

// Done is closed when the gate is stopping.
func (g *Gate) Done() <-chan struct{} { return g.done }

// State returns the current state and outcome.
func (g *Gate) State() (State, Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.outcome
}

// Active reports whether the gate is Running or Paused.
func (g *Gate) Active() bool {
	s, _ := g.State()
	return s == Running || s == Paused
}
