package track

import "time"

// trackingState is the live tracking state: one instance, owned and
// mutated exclusively by the engine's single-writer loop.
//
// Invariants:
//   - sessionSteps is monotonically non-decreasing while isTracking,
//     except an administrative reset while idle.
//   - lastCumulative never moves backward except on an accepted
//     counter reset (rebase to the new series).
//   - hasBaseline is true iff a session is active (or was active at
//     last persist) and its first reading has been observed.
type trackingState struct {
	isTracking   bool
	sessionStart time.Time

	// baseline is the cumulative value at session start (or at the
	// last rebase after a counter reset). Valid only when hasBaseline.
	baseline    int64
	hasBaseline bool

	// sessionSteps is the delta attributed to the current session.
	sessionSteps int64

	// lastCumulative is the most recent raw value seen from any
	// source. Valid only when hasObserved. Shared across all sources:
	// whichever source reports higher wins the interval, the other's
	// reading is discarded as a stale duplicate.
	lastCumulative int64
	hasObserved    bool

	// pendingRebase records that the previous reading dropped below
	// lastCumulative beyond tolerance. A single drop is ignored (a
	// lagging source replaying an old value); a second consecutive one
	// confirms a counter reset and rebases to the new series.
	pendingRebase bool

	// lastCheckpoint is the time of the last successful reconciliation.
	lastCheckpoint time.Time
}

// closeSession resets the session-scoped fields to "no active session".
// The caller folds sessionSteps into the ledger first.
func (s *trackingState) closeSession() {
	s.isTracking = false
	s.sessionStart = time.Time{}
	s.baseline = 0
	s.hasBaseline = false
	s.sessionSteps = 0
}

// openSession begins a new session at now. When a cumulative value has
// already been observed it becomes the baseline; otherwise the baseline
// stays undefined until the first reading arrives (reconcile rule:
// first reading fixes the baseline with zero delta).
func (s *trackingState) openSession(now time.Time) {
	s.isTracking = true
	s.sessionStart = now
	s.sessionSteps = 0
	if s.hasObserved {
		s.baseline = s.lastCumulative
		s.hasBaseline = true
	} else {
		s.baseline = 0
		s.hasBaseline = false
	}
}
