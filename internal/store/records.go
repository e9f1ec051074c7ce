package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stridelog/stridelog/internal/ledger"
)

// Record schema versions. Bump when a field changes meaning; decoders
// reject versions they do not understand so a downgrade never
// misinterprets newer state.
const (
	trackingRecordVersion = 1
	historyRecordVersion  = 1
)

// ErrCorruptRecord marks a persisted record that failed to parse.
// Callers discard the record and fall back to defaults; the error is
// for logging, never fatal.
var ErrCorruptRecord = errors.New("corrupt persisted record")

// TrackingRecord is the persisted shape of the mutable tracking state.
//
// StartTime and SessionBaseline are pointers: absent means "no active
// session" and "baseline not yet observed" respectively.
type TrackingRecord struct {
	Version         int        `json:"version"`
	IsTracking      bool       `json:"is_tracking"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	SessionSteps    int64      `json:"session_steps"`
	SessionBaseline *int64     `json:"session_baseline,omitempty"`
	LastCumulative  int64      `json:"last_cumulative"`
	LifetimeTotal   int64      `json:"lifetime_total"`
}

// EncodeTrackingRecord serializes a tracking record, stamping the
// current schema version.
func EncodeTrackingRecord(r TrackingRecord) (string, error) {
	r.Version = trackingRecordVersion
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode tracking record: %w", err)
	}
	return string(data), nil
}

// DecodeTrackingRecord parses a persisted tracking record. Any parse
// failure, version mismatch, or invariant violation yields
// ErrCorruptRecord: the caller treats it as "no prior session" and
// starts idle.
func DecodeTrackingRecord(data string) (TrackingRecord, error) {
	var r TrackingRecord
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return TrackingRecord{}, fmt.Errorf("%w: tracking state: %v", ErrCorruptRecord, err)
	}
	if r.Version != trackingRecordVersion {
		return TrackingRecord{}, fmt.Errorf("%w: tracking state: unsupported version %d", ErrCorruptRecord, r.Version)
	}
	if r.SessionSteps < 0 || r.LifetimeTotal < 0 {
		return TrackingRecord{}, fmt.Errorf("%w: tracking state: negative counters", ErrCorruptRecord)
	}
	if r.IsTracking && r.StartTime == nil {
		return TrackingRecord{}, fmt.Errorf("%w: tracking state: tracking without start time", ErrCorruptRecord)
	}
	return r, nil
}

// historyEnvelope wraps the session list. Entries stay raw so each one
// is parsed (and discarded) individually.
type historyEnvelope struct {
	Version  int               `json:"version"`
	Sessions []json.RawMessage `json:"sessions"`
}

// EncodeHistory serializes the session history record.
func EncodeHistory(sessions []ledger.Session) (string, error) {
	raw := make([]json.RawMessage, 0, len(sessions))
	for _, s := range sessions {
		data, err := json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("encode history entry %s: %w", s.ID, err)
		}
		raw = append(raw, data)
	}
	data, err := json.Marshal(historyEnvelope{Version: historyRecordVersion, Sessions: raw})
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(data), nil
}

// DecodeHistory parses the session history record. A corrupt envelope
// yields ErrCorruptRecord and an empty history. A corrupt individual
// entry is skipped (counted in skipped) without affecting its
// neighbors.
func DecodeHistory(data string) (sessions []ledger.Session, skipped int, err error) {
	var env historyEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, 0, fmt.Errorf("%w: history: %v", ErrCorruptRecord, err)
	}
	if env.Version != historyRecordVersion {
		return nil, 0, fmt.Errorf("%w: history: unsupported version %d", ErrCorruptRecord, env.Version)
	}

	for _, raw := range env.Sessions {
		var s ledger.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			skipped++
			continue
		}
		if s.Validate() != nil {
			skipped++
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, skipped, nil
}
