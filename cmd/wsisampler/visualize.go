package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/config"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/sampler"
)

// NewVisualizeCmd creates the visualize command.
func NewVisualizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visualize [slide...]",
		Short: "Draw annotation contours on slide thumbnails",
		Long: `Visualize writes <slide>_annotation.png for every slide with an annotation:
a thumbnail of the slide with the outline of every annotated region in black.

Examples:
  wsisampler visualize --annotation-dir annotations --vis-dir vis slides/*`,
		Args: cobra.MinimumNArgs(1),
		RunE: runVisualizeCmd,
	}

	addSlideFlags(cmd)
	cmd.Flags().String("vis-dir", "", "Directory for the rendered overlays")
	cmd.Flags().Int("size", 0, "Longest side of the thumbnails in pixels")

	return cmd
}

// runVisualizeCmd executes the visualize command.
func runVisualizeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Annotation.Dir == "" {
		return errors.New("visualize needs an annotation directory (--annotation-dir)")
	}
	logger := setupLogger(cmd, cfg.Output.Verbose)

	ctx, cancel := signalContext()
	defer cancel()

	results, err := visualizeSlides(ctx, cfg, args, logger)
	if err != nil {
		return err
	}
	return reportBatch(cmd, results, false)
}

// visualizeSlides renders the annotation overlay of each slide.
func visualizeSlides(ctx context.Context, cfg *config.Config, paths []string, logger *slog.Logger) ([]sampler.BatchResult, error) {
	opts := samplerOptions(cfg, logger)

	return sampler.RunBatch(ctx, paths, cfg.Processing.NumCores, func(_ context.Context, path string) (res sampler.BatchResult, err error) {
		s, err := sampler.Open(path, opts)
		if err != nil {
			return res, err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()

		res.Output, err = s.SaveAnnotationVisualization(cfg.Output.VisualizationDir, cfg.Output.ThumbnailSize)
		return res, err
	}, logger)
}
