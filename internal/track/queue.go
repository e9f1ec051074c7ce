package track

import (
	"sync"

	"github.com/stridelog/stridelog/internal/source"
)

// eventKind distinguishes the inputs that feed the engine loop.
type eventKind int

const (
	// eventReading carries a raw cumulative counter reading.
	eventReading eventKind = iota + 1
	// eventLifecycle carries an app lifecycle edge.
	eventLifecycle
	// eventFlushTick asks for a periodic persistence flush.
	eventFlushTick
	// eventStaleTick asks for a staleness check (re-poll if no reading
	// has been observed recently).
	eventStaleTick
	// eventCommand carries a synchronous public-API command.
	eventCommand
)

// LifecyclePhase is an app lifecycle edge delivered by the host layer.
// Modeled as a plain enum fed to the single reconciliation entry point,
// not as observer callbacks.
type LifecyclePhase int

const (
	// PhaseResumed: app moved to the foreground.
	PhaseResumed LifecyclePhase = iota + 1
	// PhasePaused: app moved to the background.
	PhasePaused
	// PhaseDetached: app is being torn down.
	PhaseDetached
)

// String returns the phase name for logging.
func (p LifecyclePhase) String() string {
	switch p {
	case PhaseResumed:
		return "resumed"
	case PhasePaused:
		return "paused"
	case PhaseDetached:
		return "detached"
	default:
		return "unknown"
	}
}

type cmdKind int

const (
	cmdStart cmdKind = iota + 1
	cmdStop
	cmdClearHistory
	cmdResetTotal
)

// command is a public-API mutation routed through the event loop. The
// caller blocks on reply so start/stop keep their synchronous
// durability guarantees.
type command struct {
	kind  cmdKind
	reply chan error
}

// event wraps all engine inputs for the queue.
type event struct {
	kind    eventKind
	reading source.Reading
	phase   LifecyclePhase
	cmd     *command
}

// eventQueue is a thread-safe FIFO queue feeding the single-writer
// engine loop.
//
// The queue is unbounded: readings may arrive in bursts (recovery
// re-poll plus stream catch-up) and producers must never block.
//
// The signal channel (buffered, size 1) lets the Run loop wait for
// events without spinning while staying responsive to context
// cancellation.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{}
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain the
	// event's command pointer until reallocation.
	q.events[0] = event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel closes when the queue closes, waking all waiters.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether the queue has been closed.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close marks the queue closed and wakes all waiters. Idempotent.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
