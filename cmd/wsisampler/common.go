package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/logging"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/config"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/sampler"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/tissuemask"
)

// addSlideFlags registers the flags every command that opens slides needs.
func addSlideFlags(cmd *cobra.Command) {
	cmd.Flags().String("level0", "", `Magnification of level 0, or "infer" to read it from the slide`)
	cmd.Flags().String("tissue-mask-dir", "", "Directory for cached tissue masks")
	cmd.Flags().String("annotation-dir", "", "Directory holding annotation pyramids named after the slides")
	cmd.Flags().IntP("workers", "w", 0, "Number of slides processed in parallel (default: all cores)")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig reads the configuration file named by --config and applies the
// flags the user set on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if getVerboseFlag(cmd) {
		cfg.Output.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag that was set on the command line into cfg.
// Flags the command does not define are skipped.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	var err error
	str := func(name string, dst *string) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetInt(name)
		}
	}
	frac := func(name string, dst *float64) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetFloat64(name)
		}
	}

	str("level0", &cfg.Slide.Level0Magnification)
	str("tissue-mask-dir", &cfg.TissueMask.Dir)
	str("annotation-dir", &cfg.Annotation.Dir)
	num("workers", &cfg.Processing.NumCores)

	frac("magnification", &cfg.Sampling.Magnification)
	num("patch-size", &cfg.Sampling.PatchSize)
	num("max-per-class", &cfg.Sampling.MaxPerClass)
	if err == nil && flags.Changed("seed") {
		cfg.Sampling.Seed, err = flags.GetInt64("seed")
	}

	str("output", &cfg.Output.Dir)
	str("format", &cfg.Output.Format)
	str("patch-dir", &cfg.Output.PatchDir)
	str("vis-dir", &cfg.Output.VisualizationDir)
	num("size", &cfg.Output.ThumbnailSize)

	return err
}

// samplerOptions translates cfg into sampler options.
func samplerOptions(cfg *config.Config, logger *slog.Logger) sampler.Options {
	opts := sampler.DefaultOptions()
	opts.Level0Magnification = cfg.Slide.Level0Magnification
	opts.TissueMaskDir = cfg.TissueMask.Dir
	opts.TissueMaskMagnification = cfg.TissueMask.Magnification
	opts.TissueMaskTolerance = cfg.TissueMask.Tolerance
	opts.Generator = &tissuemask.OtsuGenerator{
		Bins:          cfg.TissueMask.Bins,
		MinSaturation: cfg.TissueMask.MinSaturation,
	}
	opts.AnnotationDir = cfg.Annotation.Dir
	opts.AnnotationMagnification = cfg.Annotation.Magnification
	opts.AnnotationTolerance = cfg.Annotation.Tolerance
	opts.LevelTolerance = cfg.Sampling.LevelTolerance
	opts.Seed = cfg.Sampling.Seed
	opts.PatchDir = cfg.Output.PatchDir
	opts.Logger = logger
	opts.Verbose = cfg.Output.Verbose
	return opts
}

// setupLogger creates the logger and installs it as the default.
func setupLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	logger := logging.New(cmd.ErrOrStderr(), verbose)
	if asJSON, _ := cmd.Flags().GetBool("log-json"); asJSON {
		logger = logging.NewJSON(cmd.ErrOrStderr(), verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// reportBatch prints one line per slide and returns an error when any failed.
// withCounts adds the accepted and rejected patch counts.
func reportBatch(cmd *cobra.Command, results []sampler.BatchResult, withCounts bool) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(out, "%-24s FAILED: %v\n", r.ImageID, r.Err)
		case withCounts:
			fmt.Fprintf(out, "%-24s accepted=%d rejected=%d %s\n", r.ImageID, r.Accepted, r.Rejected, r.Output)
		default:
			fmt.Fprintf(out, "%-24s %s\n", r.ImageID, r.Output)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d slides failed", failed, len(results))
	}
	return nil
}
