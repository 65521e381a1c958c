package pyramid

import (
	"errors"
	"fmt"
	"image"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
)

// Memory is a pyramid held entirely in memory. It backs synthetic slides and
// tests, and is what single-image files are loaded into.
type Memory struct {
	levels      []image.Image
	dims        []models.Dimensions
	downsamples []float64
	objective   float64
}

// NewMemory builds a pyramid from levels, level 0 first. When downsamples is
// nil the factors are derived from the level widths. An objectivePower of 0
// means the magnification is unknown.
func NewMemory(levels []image.Image, downsamples []float64, objectivePower float64) (*Memory, error) {
	if len(levels) == 0 {
		return nil, errors.New("pyramid: at least one level is required")
	}
	if downsamples != nil && len(downsamples) != len(levels) {
		return nil, fmt.Errorf("pyramid: %d downsamples for %d levels", len(downsamples), len(levels))
	}

	m := &Memory{
		levels:    levels,
		dims:      make([]models.Dimensions, len(levels)),
		objective: objectivePower,
	}

	base := levels[0].Bounds().Dx()
	for i, lvl := range levels {
		b := lvl.Bounds()
		m.dims[i] = models.Dimensions{Width: b.Dx(), Height: b.Dy()}
	}

	if downsamples == nil {
		m.downsamples = make([]float64, len(levels))
		for i, d := range m.dims {
			m.downsamples[i] = float64(base) / float64(max(1, d.Width))
		}
	} else {
		m.downsamples = append([]float64(nil), downsamples...)
	}

	return m, nil
}

// LevelDimensions implements Pyramid.
func (m *Memory) LevelDimensions() []models.Dimensions {
	return m.dims
}

// LevelDownsamples implements Pyramid.
func (m *Memory) LevelDownsamples() []float64 {
	return m.downsamples
}

// ObjectivePower implements Pyramid.
func (m *Memory) ObjectivePower() (float64, bool) {
	return m.objective, m.objective > 0
}

// ReadRegion implements Pyramid.
func (m *Memory) ReadRegion(x, y, level, width, height int) (image.Image, error) {
	if err := checkRegion(m, level, width, height); err != nil {
		return nil, err
	}
	origin := levelOrigin(x, y, m.downsamples[level])
	return cropRegion(m.levels[level], origin, width, height), nil
}

// Thumbnail implements Pyramid.
func (m *Memory) Thumbnail(maxSize int) (image.Image, error) {
	widths := make([]int, len(m.dims))
	heights := make([]int, len(m.dims))
	for i, d := range m.dims {
		widths[i], heights[i] = d.Width, d.Height
	}
	return scaleToFit(m.levels[thumbnailLevel(widths, heights, maxSize)], maxSize), nil
}

// Close implements Pyramid.
func (m *Memory) Close() error {
	return nil
}
