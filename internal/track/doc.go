// Package track is the session tracking and recovery engine.
//
// It turns raw cumulative counter readings from any number of push and
// pull sources into session step deltas, persists enough state to
// resume correctly after the process is killed, reconciles gaps from
// missed events, and merges concurrent inputs through one single-writer
// event loop.
//
// # Concurrency model
//
// Five kinds of input may arrive concurrently: push stream readings,
// periodic pull-source polls, app lifecycle edges, the persistence
// flush timer, and the staleness refresh timer. All of them are
// enqueued onto one FIFO queue and applied by the Run loop goroutine,
// which is the only mutator of the tracking state and the ledger.
// Reconciliation correctness depends on this: the read-modify-write of
// lastCumulative and sessionSteps must be atomic relative to every
// input. I/O never happens under the loop's state except the bounded
// synchronous flushes at the durability points.
//
// # Durability
//
// State is flushed as full snapshots to two independent store keys
// (mutable tracking state, append-mostly history): synchronously at
// start and stop, periodically while tracking, and on background
// lifecycle edges. At startup the engine rehydrates both keys
// independently and runs a one-time recovery pass; corrupt records are
// discarded individually, never fatal.
package track
