package sampler

import (
	"log/slog"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/tissuemask"
)

// Options configures a sampling session.
type Options struct {
	// Level0Magnification is the magnification of level 0, either a number
	// ("40") or "infer" to read the slide's objective power
	Level0Magnification string

	// TissueMaskDir holds cached tissue masks
	TissueMaskDir string

	// TissueMaskMagnification and TissueMaskTolerance select the level
	// newly generated masks are computed at
	TissueMaskMagnification float64
	TissueMaskTolerance     float64

	// Generator computes tissue masks on a cache miss; nil means Otsu
	Generator tissuemask.Generator

	// AnnotationDir is searched for an annotation pyramid matching the image
	// identifier. Empty disables annotations.
	AnnotationDir string

	// AnnotationMagnification and AnnotationTolerance select the
	// low-resolution annotation level used for seeding
	AnnotationMagnification float64
	AnnotationTolerance     float64

	// LevelTolerance is how close the sampling level must be to the
	// requested magnification
	LevelTolerance float64

	// Seed fixes the order of the seed pools
	Seed int64

	// PatchDir, when set, receives every accepted patch as a PNG
	PatchDir string

	Logger *slog.Logger

	// Verbose logs the rejection count when a frame is saved
	Verbose bool
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Level0Magnification:     pyramid.InferMagnification,
		TissueMaskMagnification: tissuemask.DefaultMagnification,
		TissueMaskTolerance:     tissuemask.DefaultTolerance,
		AnnotationMagnification: 1.25,
		AnnotationTolerance:     20,
		LevelTolerance:          0.01,
		Seed:                    1,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
