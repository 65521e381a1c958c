// Package sampler draws class-balanced patches from a pyramid image. A
// Sampler owns one image, its tissue mask and, once prepared, the seed pools
// for one magnification and patch size.
package sampler

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/seeds"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/tissuemask"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/visualization"
)

var (
	// ErrNoSamplingLevel is returned when no level is close enough to the
	// requested sampling magnification.
	ErrNoSamplingLevel = errors.New("no level near the requested magnification")

	// ErrNoAnnotationMatch is returned when the annotation pyramid has no
	// level with exactly the sampling level's dimensions.
	ErrNoAnnotationMatch = errors.New("annotation has no level matching the sampling level")

	// ErrNotPrepared is returned when sampling before Prepare.
	ErrNotPrepared = errors.New("sampler not prepared")

	// ErrInvalidCap is returned for a per-class cap below 1.
	ErrInvalidCap = errors.New("max patches per class must be positive")

	// ErrNoAnnotation is returned by operations that need an annotation when
	// none is configured.
	ErrNoAnnotation = errors.New("no annotation configured")
)

// Sampler is a sampling session for one pyramid image. It is not safe for
// concurrent use.
type Sampler struct {
	slide      pyramid.Pyramid
	annotation pyramid.Pyramid
	resolver   *pyramid.Resolver
	mask       *tissuemask.Mask

	imageID string
	parent  string
	opts    Options
	logger  *slog.Logger

	// Set by Prepare
	prepared      bool
	magnification float64
	level         int
	patchSize     int
	maskPatchSize int
	annLevel      int
	classes       []seeds.ClassSeeds
}

// Open opens the pyramid at path and, when opts.AnnotationDir is set, the
// annotation whose name contains the image identifier. A missing annotation
// is not an error; the slide is then sampled as class 0 only.
func Open(path string, opts Options) (*Sampler, error) {
	logger := opts.logger()
	imageID := pyramid.ImageID(path)

	slide, err := pyramid.Open(path)
	if err != nil {
		return nil, err
	}

	var annotation pyramid.Pyramid
	if opts.AnnotationDir != "" {
		annPath, found, err := FindAnnotation(opts.AnnotationDir, imageID)
		if err != nil {
			slide.Close()
			return nil, err
		}
		if found {
			logger.Info("annotation found, loading", "image", imageID, "path", annPath)
			if annotation, err = pyramid.Open(annPath); err != nil {
				slide.Close()
				return nil, fmt.Errorf("failed to open annotation: %w", err)
			}
		} else {
			logger.Info("no annotation found, skipping", "image", imageID)
		}
	}

	s, err := New(slide, annotation, path, opts)
	if err != nil {
		slide.Close()
		if annotation != nil {
			annotation.Close()
		}
		return nil, err
	}
	return s, nil
}

// New starts a session on slide. annotation may be nil. parent is the path
// recorded in every patch record and the source of the image identifier.
// The tissue mask is loaded from or generated into opts.TissueMaskDir.
func New(slide, annotation pyramid.Pyramid, parent string, opts Options) (*Sampler, error) {
	logger := opts.logger()
	imageID := pyramid.ImageID(parent)
	logger.Info("initializing sampler", "image", imageID)

	level0Mag, err := pyramid.Level0Magnification(slide, opts.Level0Magnification)
	if err != nil {
		return nil, err
	}
	resolver := pyramid.NewResolver(slide, level0Mag)
	logger.Debug("level magnifications", "image", imageID, "magnifications", resolver.Magnifications())

	manager := tissuemask.NewManager(opts.TissueMaskDir, logger)
	if opts.Generator != nil {
		manager.Generator = opts.Generator
	}
	if opts.TissueMaskMagnification > 0 {
		manager.Magnification = opts.TissueMaskMagnification
	}
	if opts.TissueMaskTolerance > 0 {
		manager.Tolerance = opts.TissueMaskTolerance
	}

	mask, err := manager.Obtain(slide, resolver, imageID)
	if err != nil {
		return nil, err
	}

	return &Sampler{
		slide:      slide,
		annotation: annotation,
		resolver:   resolver,
		mask:       mask,
		imageID:    imageID,
		parent:     parent,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Prepare selects the sampling level for magnification and builds the seed
// pools for patches of patchSize pixels. Calling it again starts over with
// fresh pools.
func (s *Sampler) Prepare(magnification float64, patchSize int) error {
	if patchSize <= 0 {
		return fmt.Errorf("patch size must be positive, got %d", patchSize)
	}

	level, ok := s.resolver.ResolveLevel(magnification, s.opts.LevelTolerance)
	if !ok {
		return fmt.Errorf("%w: %.2fx, available %v", ErrNoSamplingLevel, magnification, s.resolver.Magnifications())
	}

	var ann *seeds.Annotation
	annLevel := -1
	if s.annotation != nil {
		annResolver := pyramid.NewResolver(s.annotation, s.resolver.Level0Magnification())
		dims := s.resolver.Dimensions(level)
		if annLevel, ok = annResolver.LevelForDimensions(dims); !ok {
			return fmt.Errorf("%w: %dx%d", ErrNoAnnotationMatch, dims.Width, dims.Height)
		}

		var err error
		ann, err = seeds.NewAnnotation(s.annotation, s.resolver.Level0Magnification(),
			s.opts.AnnotationMagnification, s.opts.AnnotationTolerance)
		if err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewSource(s.opts.Seed))
	classes, err := seeds.Generate(s.mask, s.resolver, ann, rng)
	if err != nil {
		return err
	}

	s.magnification = magnification
	s.level = level
	s.patchSize = patchSize
	s.maskPatchSize = max(1, s.resolver.Convert(patchSize, level, s.mask.Level))
	s.annLevel = annLevel
	s.classes = classes
	s.prepared = true

	for _, cs := range classes {
		s.logger.Debug("seed pool ready", "image", s.imageID, "class", cs.Class, "seeds", len(cs.Pool))
	}
	return nil
}

// ImageID returns the identifier used for caches and outputs.
func (s *Sampler) ImageID() string { return s.imageID }

// Resolver returns the slide's level resolver.
func (s *Sampler) Resolver() *pyramid.Resolver { return s.resolver }

// Mask returns the tissue mask.
func (s *Sampler) Mask() *tissuemask.Mask { return s.mask }

// Level returns the sampling level chosen by Prepare.
func (s *Sampler) Level() int { return s.level }

// AnnotationLevel returns the annotation level matching the sampling level,
// or -1 without an annotation.
func (s *Sampler) AnnotationLevel() int { return s.annLevel }

// Classes returns the seed pools built by Prepare.
func (s *Sampler) Classes() []seeds.ClassSeeds { return s.classes }

// HasAnnotation reports whether an annotation pyramid is attached.
func (s *Sampler) HasAnnotation() bool { return s.annotation != nil }

// SaveAnnotationVisualization writes the annotation contour overlay for this
// image to dir.
func (s *Sampler) SaveAnnotationVisualization(dir string, size int) (string, error) {
	if s.annotation == nil {
		return "", ErrNoAnnotation
	}
	path, err := visualization.SaveAnnotationOverlay(s.slide, s.annotation, dir, s.imageID, size)
	if err != nil {
		return "", err
	}
	s.logger.Info("saved annotation visualization", "image", s.imageID, "path", path)
	return path, nil
}

// Close releases the slide and annotation pyramids.
func (s *Sampler) Close() error {
	err := s.slide.Close()
	if s.annotation != nil {
		if aerr := s.annotation.Close(); err == nil {
			err = aerr
		}
	}
	return err
}

// FindAnnotation looks in dir for an annotation pyramid whose name contains
// imageID. Entries are checked in name order and hidden files are skipped.
func FindAnnotation(dir, imageID string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read annotation directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.Contains(name, imageID) {
			return filepath.Join(dir, name), true, nil
		}
	}
	return "", false, nil
}
