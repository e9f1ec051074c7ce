package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stridelog/stridelog/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List completed sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the most recent N sessions (0 = all)")

	return cmd
}

type historyData struct {
	Sessions []sessionEntry `json:"sessions"`
	Total    int64          `json:"total_steps"`
}

type sessionEntry struct {
	ID       string    `json:"id"`
	Steps    int64     `json:"steps"`
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	Duration string    `json:"duration"`
}

func (d historyData) String() string {
	if len(d.Sessions) == 0 {
		return "No completed sessions."
	}
	var b strings.Builder
	for _, s := range d.Sessions {
		fmt.Fprintf(&b, "%s  %s  %8s steps  (%s)\n",
			s.Start.Local().Format("2006-01-02 15:04"),
			shortID(s.ID),
			FormatSteps(s.Steps),
			s.Duration,
		)
	}
	fmt.Fprintf(&b, "%d sessions, %s steps", len(d.Sessions), FormatSteps(d.Total))
	return b.String()
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	kv, err := openStore(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer kv.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sessions, err := readHistory(ctx, kv, out)
	if err != nil {
		return err
	}
	if opts.Limit > 0 && len(sessions) > opts.Limit {
		sessions = sessions[len(sessions)-opts.Limit:]
	}
	return out.Success(buildHistoryData(sessions))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func buildHistoryData(sessions []ledger.Session) historyData {
	data := historyData{Sessions: make([]sessionEntry, 0, len(sessions))}
	for _, s := range sessions {
		data.Sessions = append(data.Sessions, sessionEntry{
			ID:       s.ID,
			Steps:    s.Steps,
			Start:    s.StartTime,
			End:      s.EndTime,
			Duration: s.EndTime.Sub(s.StartTime).Round(time.Second).String(),
		})
		data.Total += s.Steps
	}
	return data
}
