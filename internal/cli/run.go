package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stridelog/stridelog/internal/config"
	"github.com/stridelog/stridelog/internal/source"
	"github.com/stridelog/stridelog/internal/store"
	"github.com/stridelog/stridelog/internal/track"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Track  bool
	Follow bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the tracking engine",
		Long: `Start the step-tracking engine.

The engine restores its state from the durable store, recovers any
session that was open when the process last stopped, and reconciles
readings from the configured counter sources until interrupted.

Example:
  stridelog run -c stridelog.yaml
  stridelog run -c stridelog.yaml --track --follow`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTracker(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Track, "track", false, "open a session on start and close it on shutdown")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "print each state update")

	return cmd
}

func runTracker(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	setupLogging(opts.Verbose, cfg.Log.Level)

	slog.Info("opening store", "backend", cfg.Store.Backend, "path", cfg.Store.Path)
	kv, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	eng := track.New(cfg.TrackConfig(), kv, sourceOptions(cfg)...)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := eng.Init(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize engine", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Tracking engine started. Press Ctrl-C to stop.")

	// The engine runs on its own context so a shutdown can stop the
	// open session through the still-live loop before closing it.
	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return eng.Run(gctx)
	})
	if opts.Follow {
		updates, unsubscribe := eng.Subscribe()
		g.Go(func() error {
			defer unsubscribe()
			followUpdates(gctx, cmd.OutOrStdout(), updates)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		if opts.Track {
			eng.StopTracking()
		}
		return eng.Close()
	})

	if opts.Track && !eng.StartTracking() {
		cancel()
		_ = g.Wait()
		return NewExitError(ExitFailure, "could not start a session: no counter source reachable")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("engine stopped gracefully")
	return nil
}

// followUpdates prints each state update until the context ends or the
// engine closes its subscription.
func followUpdates(ctx context.Context, w io.Writer, updates <-chan track.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			state := "idle"
			if s.IsTracking {
				state = "tracking"
			}
			fmt.Fprintf(w, "[%s] session=%s total=%s\n",
				state, FormatSteps(s.SessionSteps), FormatSteps(s.TotalSteps))
		}
	}
}

// sourceOptions builds the engine options for the configured sources.
// A counter file serves as both a push stream and a pull provider; the
// health endpoint is pull-only.
func sourceOptions(cfg *config.Config) []track.Option {
	var opts []track.Option
	if cfg.Sources.CounterFile != "" {
		f := source.NewCounterFile(cfg.Sources.CounterFile)
		opts = append(opts, track.WithStream(f), track.WithProvider(f))
	}
	if cfg.Sources.HealthURL != "" {
		opts = append(opts, track.WithProvider(
			source.NewHealthProvider(cfg.Sources.HealthURL, cfg.Sources.HealthTimeout)))
	}
	if len(opts) == 0 {
		slog.Warn("no counter sources configured; sessions cannot start")
	}
	return opts
}

// loadConfig resolves the effective configuration: the --config file
// when given, schema defaults otherwise.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	return config.Load(opts.Config)
}

// setupLogging installs the default slog handler. --verbose forces
// debug level regardless of the configured one.
func setupLogging(verbose bool, level slog.Level) {
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
