package tissuemask

import (
	"fmt"
	"log/slog"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
)

// Default level selection for newly generated masks.
const (
	DefaultMagnification = 1.25
	DefaultTolerance     = 10.0
)

// Manager loads a cached tissue mask for an image or generates and caches a
// new one. Callers must not run two managers for the same image identifier
// against the same directory at once.
type Manager struct {
	// Dir is the cache directory
	Dir string

	// Generator computes masks on a cache miss
	Generator Generator

	// Magnification is the target magnification for generated masks
	Magnification float64

	// Tolerance is how far a level may be from Magnification
	Tolerance float64

	Logger *slog.Logger
}

// NewManager returns a Manager with the default level selection and the Otsu
// generator.
func NewManager(dir string, logger *slog.Logger) *Manager {
	return &Manager{
		Dir:           dir,
		Generator:     NewOtsuGenerator(),
		Magnification: DefaultMagnification,
		Tolerance:     DefaultTolerance,
		Logger:        logger,
	}
}

// Obtain returns the tissue mask for imageID with its Level set.
func (m *Manager) Obtain(p pyramid.Pyramid, r *pyramid.Resolver, imageID string) (*Mask, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path, found, err := FindCached(m.Dir, imageID)
	if err != nil {
		return nil, err
	}
	if found {
		logger.Info("tissue mask found, loading", "image", imageID, "path", path)
		return m.load(path, r)
	}

	level, ok := r.ResolveLevel(m.Magnification, m.Tolerance)
	if !ok {
		return nil, fmt.Errorf("%w: target %.2fx, available %v",
			ErrNoMaskLevel, m.Magnification, r.Magnifications())
	}

	logger.Info("tissue mask not found, generating",
		"image", imageID,
		"level", level,
		"magnification", r.Magnification(level),
	)

	mask, err := m.Generator.Generate(p, level)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tissue mask: %w", err)
	}
	if mask.Dimensions() != r.Dimensions(level) {
		return nil, fmt.Errorf("generated tissue mask is %dx%d, level %d is %dx%d",
			mask.Cols, mask.Rows, level, r.Dimensions(level).Width, r.Dimensions(level).Height)
	}
	if len(mask.Data) != mask.Rows*mask.Cols {
		return nil, fmt.Errorf("generated tissue mask holds %d cells for %dx%d", len(mask.Data), mask.Cols, mask.Rows)
	}
	mask.Level = level

	saved, err := Save(m.Dir, imageID, mask)
	if err != nil {
		return nil, err
	}
	logger.Debug("tissue mask cached", "image", imageID, "path", saved)

	return mask, nil
}

func (m *Manager) load(path string, r *pyramid.Resolver) (*Mask, error) {
	mask, err := Load(path)
	if err != nil {
		return nil, err
	}

	level, ok := r.LevelForDimensions(mask.Dimensions())
	if !ok {
		return nil, fmt.Errorf("%w: %s is %dx%d", ErrNoMatchingLevel, path, mask.Cols, mask.Rows)
	}
	mask.Level = level
	return mask, nil
}
