package track

import (
	"time"

	"github.com/stridelog/stridelog/internal/source"
)

// DefaultResetTolerance is the small negative slack allowed between
// readings before a drop is classified as a counter reset. Two sources
// reporting the same series can disagree by a few steps without either
// having reset.
const DefaultResetTolerance = 5

// reconcileOutcome classifies what a reading did to the state.
type reconcileOutcome int

const (
	// outcomeObserved: not tracking; lastCumulative advanced for
	// future baseline use.
	outcomeObserved reconcileOutcome = iota + 1
	// outcomeBaselineSet: first reading since start fixed the
	// session baseline. No delta attributed.
	outcomeBaselineSet
	// outcomeAccrued: positive delta added to the session.
	outcomeAccrued
	// outcomeDiscarded: duplicate or stale reading, no state change.
	outcomeDiscarded
	// outcomeReset: counter reset detected; baseline rebased to the
	// new series, no steps attributed for the reset itself.
	outcomeReset
)

// String returns the outcome name for logging.
func (o reconcileOutcome) String() string {
	switch o {
	case outcomeObserved:
		return "observed"
	case outcomeBaselineSet:
		return "baseline_set"
	case outcomeAccrued:
		return "accrued"
	case outcomeDiscarded:
		return "discarded"
	case outcomeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// applyReading reconciles one raw cumulative reading into the state and
// returns the outcome plus the step delta attributed (non-zero only for
// outcomeAccrued).
//
// The algorithm is source-agnostic: push and poll readings go through
// the same rules against the single shared lastCumulative, which is
// what prevents double counting when both sources are live.
func (s *trackingState) applyReading(r source.Reading, tolerance int64, now time.Time) (reconcileOutcome, int64) {
	// A reading below everything we have seen is either a counter
	// reset (device reboot, sensor restart) or a lagging source
	// replaying an old value of the same series. A single drop is
	// ignored outright: sessionSteps and lastCumulative are untouched,
	// so the lagging source cannot drag the state backward and make
	// the next fresh reading re-accrue an interval already counted.
	// A second consecutive drop confirms the reset, and that reading
	// becomes the new baseline with no steps attributed.
	if s.hasObserved && r.Cumulative < s.lastCumulative-tolerance {
		if !s.pendingRebase {
			s.pendingRebase = true
			return outcomeDiscarded, 0
		}
		s.pendingRebase = false
		s.lastCumulative = r.Cumulative
		if s.isTracking {
			s.baseline = r.Cumulative
			s.hasBaseline = true
		}
		s.lastCheckpoint = now
		return outcomeReset, 0
	}
	s.pendingRebase = false

	// Not tracking: remember the value for future baseline use only.
	if !s.isTracking {
		if !s.hasObserved || r.Cumulative > s.lastCumulative {
			s.lastCumulative = r.Cumulative
		}
		s.hasObserved = true
		s.lastCheckpoint = now
		return outcomeObserved, 0
	}

	// First reading since start: fixes the baseline, no delta. A
	// session is measured against its own baseline, never an external
	// absolute origin.
	if !s.hasBaseline {
		s.baseline = r.Cumulative
		s.hasBaseline = true
		s.sessionSteps = 0
		s.lastCumulative = r.Cumulative
		s.hasObserved = true
		s.lastCheckpoint = now
		return outcomeBaselineSet, 0
	}

	delta := r.Cumulative - s.lastCumulative
	if delta <= 0 {
		// Duplicate or stale (the other source already reported this
		// interval). lastCumulative never moves backward.
		return outcomeDiscarded, 0
	}

	s.sessionSteps += delta
	s.lastCumulative = r.Cumulative
	s.lastCheckpoint = now
	return outcomeAccrued, delta
}
