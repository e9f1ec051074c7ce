package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stridelog/stridelog/internal/store"
)

// NewStatusCommand creates the status command. It inspects the durable
// store directly; the engine does not need to be running.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the persisted tracking state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

type statusData struct {
	Tracking     bool       `json:"tracking"`
	SessionSteps int64      `json:"session_steps"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	TotalSteps   int64      `json:"total_steps"`
	Sessions     int        `json:"sessions"`
}

func (d statusData) String() string {
	var b strings.Builder
	if d.Tracking {
		fmt.Fprintf(&b, "Tracking: active (%s steps this session)\n", FormatSteps(d.SessionSteps))
		if d.StartedAt != nil {
			fmt.Fprintf(&b, "Started:  %s\n", d.StartedAt.Local().Format(time.RFC1123))
		}
	} else {
		b.WriteString("Tracking: idle\n")
	}
	fmt.Fprintf(&b, "Total:    %s steps\n", FormatSteps(d.TotalSteps))
	fmt.Fprintf(&b, "Sessions: %d", d.Sessions)
	return b.String()
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
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
	sessions, err := readHistory(ctx, kv, out)
	if err != nil {
		return err
	}

	data := statusData{
		Tracking:     rec.IsTracking,
		SessionSteps: rec.SessionSteps,
		StartedAt:    rec.StartTime,
		TotalSteps:   rec.LifetimeTotal,
		Sessions:     len(sessions),
	}
	if rec.IsTracking {
		data.TotalSteps += rec.SessionSteps
	}
	return out.Success(data)
}

// readTrackingRecord loads the persisted tracking record, treating a
// missing or corrupt record as idle state (matching the engine's
// recovery behavior).
func readTrackingRecord(ctx context.Context, kv store.KV, out *OutputFormatter) (store.TrackingRecord, error) {
	raw, found, err := kv.Get(ctx, store.KeyTrackingState)
	if err != nil {
		return store.TrackingRecord{}, WrapExitError(ExitCommandError, "failed to read tracking state", err)
	}
	if !found {
		return store.TrackingRecord{}, nil
	}
	rec, err := store.DecodeTrackingRecord(raw)
	if err != nil {
		out.VerboseLog("tracking record corrupt, treated as idle: %v", err)
		return store.TrackingRecord{}, nil
	}
	return rec, nil
}
