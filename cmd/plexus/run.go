package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gekko3d/plexus"
)

type RunOptions struct {
	*RootOptions
	Ticks       uint64
	Backend     string
	MetricsAddr string
	Watch       bool
}

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline headless",
		Long: `Run the particle and line pipeline without a window.

Example:
  plexus run --ticks 600 --metrics-addr :9090
  plexus run -c plexus.yaml --watch --zap development`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runHeadless(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Uint64Var(&opts.Ticks, "ticks", 0, "stop after this many ticks (0 = until interrupted)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "override the config backend (compute|webgpu)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload runtime parameters when the config file changes")

	return cmd
}

func loadConfig(opts *RootOptions) (plexus.Config, error) {
	if opts.ConfigPath == "" {
		return plexus.DefaultConfig(), nil
	}
	return plexus.LoadConfig(opts.ConfigPath)
}

func loggingModule(opts *RootOptions) plexus.LoggingModule {
	return plexus.LoggingModule{Prefix: "plexus", Debug: opts.Verbose, Zap: opts.Zap}
}

func syncLogger(app *plexus.App) {
	if zl, ok := app.Logger().(*plexus.ZapLogger); ok {
		_ = zl.Sync()
	}
}

// runLoop steps the app until it stops, asking it to stop once ctx is done.
func runLoop(ctx context.Context, app *plexus.App) {
	stopping := false
	for app.Step() {
		if !stopping && ctx.Err() != nil {
			stopping = true
			app.Commands().ChangeState(plexus.StateStopped)
		}
	}
}

func runHeadless(ctx context.Context, opts *RunOptions, out io.Writer) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app := plexus.NewAppBuilder().
		UseStates(plexus.StateRunning, plexus.StateStopped).
		UseModule(
			loggingModule(opts.RootOptions),
			plexus.TimeModule{FixedDt: cfg.FixedStep()},
			plexus.PlexusModule{Config: cfg, MaxTicks: opts.Ticks},
			plexus.DebugOverlayModule{},
			plexus.MetricsModule{Addr: opts.MetricsAddr},
		).
		Build()
	defer syncLogger(app)

	state := plexus.Resource[plexus.PlexusState](app)
	if opts.Watch && opts.ConfigPath != "" {
		watcher, err := plexus.NewConfigWatcher(opts.ConfigPath, app.Logger(), state.SetConfig)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	runLoop(ctx, app)

	if state.Err != nil {
		return state.Err
	}
	fmt.Fprintf(out, "ticks: %d\n", state.Ticks)
	if overlay := plexus.Resource[plexus.DebugOverlay](app); overlay != nil && overlay.Text != "" {
		fmt.Fprintln(out, overlay.Text)
	}
	return nil
}
