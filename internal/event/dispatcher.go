package event

import (
	"sync"
	"time"
)

// Observer receives events on the dispatcher's delivery goroutine.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Channel returns an observer that forwards every event to ch. The send
// blocks the delivery goroutine, never the producer.
func Channel(ch chan<- Event) Observer {
	return ObserverFunc(func(e Event) { ch <- e })
}

// Dispatcher delivers events to observers on a single goroutine. The queue
// is unbounded, so producers never block and nothing is dropped; delivery
// order is emission order.
//
// A nil *Dispatcher discards everything.
type Dispatcher struct {
	cond      *sync.Cond
	done      chan struct{}
	queue     []Event
	observers []Observer
	mu        sync.Mutex
	closed    bool
}

// NewDispatcher starts the delivery goroutine.
func NewDispatcher(observers ...Observer) *Dispatcher {
	d := &Dispatcher{observers: observers, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

// Emit queues e. Events emitted after Close are discarded.
func (d *Dispatcher) Emit(e Event) {
	d.EmitWith(func() Event { return e })
}

// EmitWith builds the event under the queue lock, so values read from
// shared counters are queued in the order they were read.
func (d *Dispatcher) EmitWith(build func() Event) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	e := build()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	d.queue = append(d.queue, e)
	d.cond.Signal()
}

// Close delivers everything already queued, then stops the goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.cond.Signal()
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, e := range batch {
			for _, o := range d.observers {
				o.OnEvent(e)
			}
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}
