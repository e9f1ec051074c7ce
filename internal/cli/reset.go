package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stridelog/stridelog/internal/store"
)

// NewResetCommand creates the reset command with its history and total
// subcommands. Both operate on the durable store directly and refuse
// to run while a session is open.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear persisted history or the lifetime total",
	}
	cmd.AddCommand(newResetHistoryCommand(rootOpts))
	cmd.AddCommand(newResetTotalCommand(rootOpts))
	return cmd
}

func newResetHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history",
		Short:         "Delete all completed sessions (keeps the lifetime total)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(rootOpts, cmd, resetHistory)
		},
	}
}

func newResetTotalCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "total",
		Short:         "Zero the lifetime total (requires empty history)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(rootOpts, cmd, resetTotal)
		},
	}
}

type resetFn func(ctx context.Context, kv store.KV, rec store.TrackingRecord, out *OutputFormatter) error

func runReset(opts *RootOptions, cmd *cobra.Command, fn resetFn) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	kv, err := openStore(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer kv.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rec, err := readTrackingRecord(ctx, kv, out)
	if err != nil {
		return err
	}
	if rec.IsTracking {
		return NewExitError(ExitFailure, "a session is open; stop tracking first")
	}
	return fn(ctx, kv, rec, out)
}

func resetHistory(ctx context.Context, kv store.KV, _ store.TrackingRecord, out *OutputFormatter) error {
	empty, err := store.EncodeHistory(nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode history", err)
	}
	if err := kv.Set(ctx, store.KeySessionHistory, empty); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear history", err)
	}
	return out.Success("History cleared.")
}

func resetTotal(ctx context.Context, kv store.KV, rec store.TrackingRecord, out *OutputFormatter) error {
	sessions, err := readHistory(ctx, kv, out)
	if err != nil {
		return err
	}
	if len(sessions) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("history is not empty (%d sessions); run 'reset history' first", len(sessions)))
	}

	rec.LifetimeTotal = 0
	raw, err := store.EncodeTrackingRecord(rec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode tracking state", err)
	}
	if err := kv.Set(ctx, store.KeyTrackingState, raw); err != nil {
		return WrapExitError(ExitCommandError, "failed to reset total", err)
	}
	return out.Success("Lifetime total reset to 0.")
}
