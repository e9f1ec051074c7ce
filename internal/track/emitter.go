package track

import "sync"

// Snapshot is the consistent view published to subscribers after every
// state change.
type Snapshot struct {
	// TotalSteps is lifetime total plus the open session's steps.
	TotalSteps int64 `json:"total_steps"`
	// SystemCumulative is the last raw counter value seen.
	SystemCumulative int64 `json:"system_cumulative"`
	// SessionSteps is the open session's step count (0 when idle).
	SessionSteps int64 `json:"session_steps"`
	// IsTracking reports whether a session is open.
	IsTracking bool `json:"is_tracking"`
	// Seq orders snapshots; a subscriber that missed intermediate
	// snapshots still observes monotone seq values.
	Seq int64 `json:"seq"`
}

// emitter broadcasts snapshots to zero or more subscribers.
//
// Delivery is best-effort and lossy under backpressure: each subscriber
// has a buffer of one, and a stale undelivered snapshot is replaced by
// the newer one. A slow subscriber misses intermediate states but the
// latest state is always eventually delivered.
type emitter struct {
	mu     sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	closed bool
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[int]chan Snapshot)}
}

// Subscribe registers a new subscriber. The cancel func removes the
// subscription and closes its channel; it is safe to call more than
// once. After the emitter closes, Subscribe returns a closed channel.
func (e *emitter) Subscribe() (<-chan Snapshot, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if e.closed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextID
	e.nextID++
	e.subs[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers s to all subscribers, replacing any undelivered
// stale snapshot. Never blocks.
func (e *emitter) Publish(s Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	for _, ch := range e.subs {
		select {
		case ch <- s:
		default:
			// Buffer full: drop the stale snapshot, then deliver the
			// fresh one. The drain cannot block (cap 1, we hold the
			// lock, only Publish sends).
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Close closes all subscriber channels. No snapshots are delivered
// afterwards. Idempotent.
func (e *emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}
