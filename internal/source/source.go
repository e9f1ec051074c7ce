// Package source defines the counter-source boundary: external
// suppliers of a monotonically non-decreasing cumulative step count.
//
// Two shapes exist and may be active simultaneously:
//   - Stream: push-style, delivers (timestamp, cumulative) readings as
//     they happen (the device motion sensor).
//   - Provider: pull-style, answers a point query for the cumulative
//     value (the health-data provider, polled periodically).
//
// The engine feeds both through a single reconciliation path, so
// sources never hold their own baselines.
package source

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable means the counter source cannot currently be queried.
var ErrUnavailable = errors.New("counter source unavailable")

// ErrAuthorizationDenied means the user has not granted (or has
// revoked) access to the counter. Not fatal: tracking can resume once
// access is granted.
var ErrAuthorizationDenied = errors.New("counter source authorization denied")

// Reading is one raw observation of a cumulative counter.
type Reading struct {
	// Origin names the source that produced the reading ("sensor",
	// "health", ...). Used for logging and metrics only; reconciliation
	// is source-agnostic.
	Origin string

	// Cumulative is the counter value since the source's own origin
	// (e.g. device boot). Not session-relative.
	Cumulative int64

	// ObservedAt is when the source took the observation.
	ObservedAt time.Time
}

// Stream is a push-style counter source.
//
// Subscribe returns a channel of readings that closes when the
// subscription ends (context cancellation or source failure). A closed
// channel is not an error by itself; the engine resubscribes with
// backoff.
type Stream interface {
	// Name identifies the stream for logging.
	Name() string
	Subscribe(ctx context.Context) (<-chan Reading, error)
}

// Provider is a pull-style counter source.
//
// QueryCumulative returns the cumulative counter value covering the
// given window. May fail with ErrAuthorizationDenied or
// ErrUnavailable. Implementations must bound their own I/O.
type Provider interface {
	// Name identifies the provider for logging.
	Name() string
	QueryCumulative(ctx context.Context, start, end time.Time) (int64, error)
}
