// Package store provides the durable state store for the tracking
// engine: key-value persistence with string values that survives
// process restarts.
//
// Two backends implement the KV interface:
//   - SQLite (default): single kv table, WAL mode, single-writer pool.
//   - Badger: embedded LSM store, optional in-memory mode for tests.
//
// No atomicity is assumed across keys. The engine writes full snapshots
// to two independent keys (tracking state and session history) so a
// crash mid-write to one key cannot corrupt the other.
//
// Record codecs live in records.go. Records are versioned; a record
// that fails to parse is discarded rather than failing the load, and
// history entries are parsed individually so one corrupt entry cannot
// take the whole history with it.
package store
