// Package ledger owns the completed-session history and the lifetime
// step total.
//
// A Ledger is NOT safe for concurrent use. The tracking engine is the
// single owner and serializes all access through its event loop; the
// CLI constructs short-lived ledgers from persisted records.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// ErrHistoryNotEmpty is returned by ResetLifetime while completed
// sessions are still recorded. Clearing the total with history present
// would leave the two permanently inconsistent.
var ErrHistoryNotEmpty = errors.New("session history not empty")

// Session is a closed tracking interval. Immutable once appended.
type Session struct {
	ID        string    `json:"id"`
	Steps     int64     `json:"steps"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Validate checks the session invariants: non-negative steps and
// EndTime >= StartTime.
func (s Session) Validate() error {
	if s.Steps < 0 {
		return fmt.Errorf("session %s: negative steps %d", s.ID, s.Steps)
	}
	if s.EndTime.Before(s.StartTime) {
		return fmt.Errorf("session %s: end %s before start %s", s.ID, s.EndTime, s.StartTime)
	}
	return nil
}

// Ledger holds completed sessions in completion order plus the cached
// lifetime total.
//
// The lifetime total equals the sum of recorded session steps except in
// the window between ClearHistory and ResetLifetime, which is why
// ResetLifetime refuses to run while history is non-empty.
type Ledger struct {
	sessions []Session
	lifetime int64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Restore rebuilds a ledger from persisted state. The lifetime total is
// taken from the tracking-state record rather than recomputed, so a
// history record that lost individual entries to corruption does not
// silently shrink the total.
func Restore(sessions []Session, lifetime int64) *Ledger {
	l := &Ledger{lifetime: lifetime}
	if len(sessions) > 0 {
		l.sessions = make([]Session, len(sessions))
		copy(l.sessions, sessions)
	}
	return l
}

// Append records a closed session and folds its steps into the lifetime
// total. Returns an error if the session violates its invariants; the
// ledger is unchanged on error.
func (l *Ledger) Append(s Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("append session: %w", err)
	}
	l.sessions = append(l.sessions, s)
	l.lifetime += s.Steps
	return nil
}

// Lifetime returns the cached lifetime total.
func (l *Ledger) Lifetime() int64 {
	return l.lifetime
}

// Len returns the number of completed sessions.
func (l *Ledger) Len() int {
	return len(l.sessions)
}

// History returns a copy of the completed sessions in completion order.
func (l *Ledger) History() []Session {
	if len(l.sessions) == 0 {
		return nil
	}
	out := make([]Session, len(l.sessions))
	copy(out, l.sessions)
	return out
}

// ClearHistory removes all completed sessions. The lifetime total is
// untouched; use ResetLifetime afterwards to zero it.
//
// The caller (the engine) must refuse this operation while a session is
// open, since the open session's steps reference the cleared history's
// epoch.
func (l *Ledger) ClearHistory() {
	l.sessions = nil
}

// ResetLifetime zeroes the lifetime total. Fails with
// ErrHistoryNotEmpty while completed sessions are still recorded.
func (l *Ledger) ResetLifetime() error {
	if len(l.sessions) > 0 {
		return ErrHistoryNotEmpty
	}
	l.lifetime = 0
	return nil
}
