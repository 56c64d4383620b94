package main

import (
	"github.com/spf13/cobra"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Zap        string // "", "development" or "production"
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "plexus",
		Short: "Particles on a sphere joined by distance-banded lines",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Zap, "zap", "", "zap logger mode (development|production)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}
