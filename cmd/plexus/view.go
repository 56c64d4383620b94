package main

import (
	"github.com/spf13/cobra"

	"github.com/gekko3d/plexus"
)

type ViewOptions struct {
	*RootOptions
	Width  int
	Height int
}

func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:          "view",
		Short:        "Open a window and render the plexus with WebGPU",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViewer(opts)
		},
	}

	cmd.Flags().IntVar(&opts.Width, "width", 1280, "window width")
	cmd.Flags().IntVar(&opts.Height, "height", 720, "window height")

	return cmd
}

func runViewer(opts *ViewOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	cfg.Backend = plexus.BackendWebGPU

	viewer := plexus.NewViewer(opts.Width, opts.Height, "plexus")
	app := plexus.NewAppBuilder().
		UseStates(plexus.StateRunning, plexus.StateStopped).
		UseModule(
			loggingModule(opts.RootOptions),
			plexus.TimeModule{FixedDt: cfg.FixedStep()},
			plexus.ViewerModule{Viewer: viewer},
			plexus.PlexusModule{Config: cfg, NewPipeline: viewer.PipelineFactory},
			plexus.DebugOverlayModule{},
		).
		Build()
	defer syncLogger(app)

	app.Run()
	return plexus.Resource[plexus.PlexusState](app).Err
}
