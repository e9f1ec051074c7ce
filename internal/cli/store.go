package cli

import (
	"context"

	"github.com/stridelog/stridelog/internal/ledger"
	"github.com/stridelog/stridelog/internal/store"
)

// openStore opens the configured KV backend for offline inspection
// commands (status, history, reset).
func openStore(opts *RootOptions) (store.KV, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.StoreConfig())
}

// readHistory loads the persisted session history. A missing record is
// an empty history; individually corrupt entries are skipped.
func readHistory(ctx context.Context, kv store.KV, out *OutputFormatter) ([]ledger.Session, error) {
	raw, found, err := kv.Get(ctx, store.KeySessionHistory)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read session history", err)
	}
	if !found {
		return nil, nil
	}
	sessions, skipped, err := store.DecodeHistory(raw)
	if err != nil {
		out.VerboseLog("history record corrupt, treated as empty: %v", err)
		return nil, nil
	}
	if skipped > 0 {
		out.VerboseLog("skipped %d corrupt history entries", skipped)
	}
	return sessions, nil
}
