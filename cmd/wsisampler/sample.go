package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/config"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/patchframe"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/sampler"
)

// NewSampleCmd creates the sample command.
func NewSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample [slide...]",
		Short: "Sample patches from one or more slides",
		Long: `Sample draws up to --max-per-class accepted patches per class from every
slide and writes one patch frame per slide to the output directory.

A slide is a single TIFF/PNG/JPEG file or a directory pyramid (one image per
level plus a pyramid.yaml manifest). When --annotation-dir is given, the
annotation whose name contains the slide's name adds one class per label.

Examples:
  # Sample 256px patches at 10x, 100 per class
  wsisampler sample -m 10 -p 256 -n 100 slides/case-01

  # Several slides, 4 at a time, CSV output
  wsisampler sample -w 4 -f csv --annotation-dir annotations slides/*`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSampleCmd,
	}

	addSlideFlags(cmd)
	cmd.Flags().Float64P("magnification", "m", 0, "Magnification patches are read at")
	cmd.Flags().IntP("patch-size", "p", 0, "Patch side length in pixels")
	cmd.Flags().IntP("max-per-class", "n", 0, "Maximum accepted patches per class")
	cmd.Flags().Int64("seed", 0, "Random seed for the sampling order")
	cmd.Flags().StringP("output", "o", "", "Directory for patch frames")
	cmd.Flags().StringP("format", "f", "", `Patch frame format, "sqlite" or "csv"`)
	cmd.Flags().String("patch-dir", "", "Also write accepted patches as PNG files here")

	return cmd
}

// runSampleCmd executes the sample command.
func runSampleCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg.Output.Verbose)

	ctx, cancel := signalContext()
	defer cancel()

	results, err := sampleSlides(ctx, cfg, args, logger)
	if err != nil {
		return err
	}
	return reportBatch(cmd, results, true)
}

// sampleSlides runs a full session for each slide.
func sampleSlides(ctx context.Context, cfg *config.Config, paths []string, logger *slog.Logger) ([]sampler.BatchResult, error) {
	format, err := patchframe.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	opts := samplerOptions(cfg, logger)

	return sampler.RunBatch(ctx, paths, cfg.Processing.NumCores, func(ctx context.Context, path string) (res sampler.BatchResult, err error) {
		s, err := sampler.Open(path, opts)
		if err != nil {
			return res, err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()

		if err := s.Prepare(cfg.Sampling.Magnification, cfg.Sampling.PatchSize); err != nil {
			return res, err
		}
		out, err := s.Sample(ctx, cfg.Sampling.MaxPerClass)
		if err != nil {
			return res, err
		}
		framePath, err := s.Save(cfg.Output.Dir, format, out)
		if err != nil {
			return res, err
		}

		res.Output = framePath
		res.Accepted = out.Frame.Len()
		res.Rejected = out.Rejected
		return res, nil
	}, logger)
}
