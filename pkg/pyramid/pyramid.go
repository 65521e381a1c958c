// Package pyramid provides access to multi-resolution ("pyramid") images and
// the level arithmetic shared by every consumer of their coordinates.
//
// A pyramid exposes an ordered list of levels. Level 0 is the full
// resolution and every following level is downsampled by the factor reported
// in LevelDownsamples. Region reads are anchored in the level-0 frame and
// sized in the pixels of the requested level, which is the convention used by
// whole-slide image readers.
package pyramid

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
)

var (
	// ErrInvalidLevel is returned when a level index is out of range.
	ErrInvalidLevel = errors.New("pyramid: level out of range")

	// ErrInvalidRegion is returned when a region has a non-positive size.
	ErrInvalidRegion = errors.New("pyramid: region size must be positive")

	// ErrUnsupportedFormat is returned by Open for paths that are neither a
	// pyramid manifest, a directory holding one, nor a decodable image.
	ErrUnsupportedFormat = errors.New("pyramid: unsupported format")

	// ErrNoObjectivePower is returned when the level-0 magnification should
	// be inferred but the image does not report an objective power.
	ErrNoObjectivePower = errors.New("pyramid: slide does not report an objective power")
)

// Pyramid is a multi-resolution raster. Implementations are read-only for the
// lifetime of a sampling session.
type Pyramid interface {
	// LevelDimensions returns the size of every level, level 0 first.
	LevelDimensions() []models.Dimensions

	// LevelDownsamples returns the downsample factor of every level
	// relative to level 0. The first value is 1.
	LevelDownsamples() []float64

	// ObjectivePower returns the magnification of level 0 when known.
	ObjectivePower() (float64, bool)

	// ReadRegion returns a width x height raster read at level, with its
	// top-left corner at (x, y) in level-0 coordinates. Pixels that fall
	// outside the level are zero.
	ReadRegion(x, y, level, width, height int) (image.Image, error)

	// Thumbnail returns a downscaled rendering of the whole image whose
	// longest side is at most maxSize.
	Thumbnail(maxSize int) (image.Image, error)

	// Close releases resources held by the pyramid.
	Close() error
}

// Open opens the pyramid stored at path. A directory must contain a
// ManifestName file; a .yaml/.yml path is read as a manifest directly; any
// other file is decoded as a single-level image.
func Open(path string) (Pyramid, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pyramid: %w", err)
	}

	if info.IsDir() {
		return OpenDirectory(filepath.Join(path, ManifestName))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return OpenDirectory(path)
	case ".tif", ".tiff", ".png", ".jpg", ".jpeg":
		return OpenImage(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ImageID derives the identifier used to key caches and outputs for the image
// at path: the base name without extension, or the directory name when path
// points at a directory pyramid or its manifest.
func ImageID(path string) string {
	clean := filepath.Clean(path)
	base := filepath.Base(clean)
	if base == ManifestName {
		return filepath.Base(filepath.Dir(clean))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func checkRegion(p Pyramid, level, width, height int) error {
	if level < 0 || level >= len(p.LevelDimensions()) {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidRegion, width, height)
	}
	return nil
}
