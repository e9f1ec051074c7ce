package store

import (
	"context"
	"fmt"
)

// Keys used by the tracking engine. Written independently: losing one
// to a crash mid-write must not corrupt the other.
const (
	// KeyTrackingState holds the mutable tracking-state record.
	KeyTrackingState = "tracking_state"
	// KeySessionHistory holds the append-mostly session history record.
	KeySessionHistory = "session_history"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// KV is the durable state store boundary: string-keyed, string-valued
// persistence with no cross-key atomicity guarantees.
//
// Get returns (value, true, nil) when the key exists and ("", false,
// nil) when it does not. All implementations are safe for concurrent
// use.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a KV backend.
type Config struct {
	// Backend is one of BackendSQLite (default) or BackendBadger.
	Backend string
	// Path is the database file (sqlite) or directory (badger).
	Path string
	// InMemory enables badger's in-memory mode. Ignored by sqlite.
	InMemory bool
}

// Open creates or opens the configured backend.
func Open(cfg Config) (KV, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		return OpenSQLite(cfg.Path)
	case BackendBadger:
		return OpenBadger(BadgerConfig{Path: cfg.Path, InMemory: cfg.InMemory, SyncWrites: true})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
