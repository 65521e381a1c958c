package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/config"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/sampler"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/tissuemask"
)

// NewMaskCmd creates the mask command.
func NewMaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mask [slide...]",
		Short: "Generate or verify cached tissue masks",
		Long: `Mask loads the cached tissue mask of every slide, generating and caching
it first when it is missing. Use it to prepare masks ahead of sampling.

Examples:
  wsisampler mask --tissue-mask-dir masks slides/*`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMaskCmd,
	}

	addSlideFlags(cmd)

	return cmd
}

// runMaskCmd executes the mask command.
func runMaskCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg.Output.Verbose)

	ctx, cancel := signalContext()
	defer cancel()

	results, err := maskSlides(ctx, cfg, args, logger)
	if err != nil {
		return err
	}
	return reportBatch(cmd, results, false)
}

// maskSlides opens each slide, which loads or generates its tissue mask.
func maskSlides(ctx context.Context, cfg *config.Config, paths []string, logger *slog.Logger) ([]sampler.BatchResult, error) {
	opts := samplerOptions(cfg, logger)
	opts.AnnotationDir = ""

	return sampler.RunBatch(ctx, paths, cfg.Processing.NumCores, func(_ context.Context, path string) (res sampler.BatchResult, err error) {
		s, err := sampler.Open(path, opts)
		if err != nil {
			return res, err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()

		m := s.Mask()
		logger.Info("tissue mask ready",
			"image", s.ImageID(),
			"level", m.Level,
			"size", fmt.Sprintf("%dx%d", m.Cols, m.Rows),
			"tissue", m.Count(),
		)
		res.Output, _, err = tissuemask.FindCached(opts.TissueMaskDir, s.ImageID())
		return res, err
	}, logger)
}
