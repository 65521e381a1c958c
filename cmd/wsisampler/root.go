package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// NewRootCmd creates the root command for wsisampler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wsisampler",
		Short: "Sample labeled patches from whole-slide images",
		Long: `wsisampler extracts class-balanced training patches from multi-resolution
microscopy images ("pyramid images").

For every slide it loads or generates a tissue mask, optionally reads a
pixel-level annotation pyramid, draws seeds per class and keeps the patches
that are at least 90% tissue and consistent with their class. Accepted
patches are written to a patch frame (SQLite or CSV) named after the slide.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath(), "Configuration file path")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	// Add subcommands
	cmd.AddCommand(NewSampleCmd())
	cmd.AddCommand(NewMaskCmd())
	cmd.AddCommand(NewVisualizeCmd())
	cmd.AddCommand(NewInitCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
