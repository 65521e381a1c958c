package pyramid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
)

// InferMagnification asks Level0Magnification to read the objective power
// from the image instead of taking it from configuration.
const InferMagnification = "infer"

// Level0Magnification returns the magnification of level 0. spec is either
// InferMagnification or a number such as "40".
func Level0Magnification(p Pyramid, spec string) (float64, error) {
	spec = strings.TrimSpace(spec)
	if strings.EqualFold(spec, InferMagnification) {
		mag, ok := p.ObjectivePower()
		if !ok || mag <= 0 {
			return 0, ErrNoObjectivePower
		}
		return mag, nil
	}

	mag, err := strconv.ParseFloat(spec, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid level-0 magnification %q: %w", spec, err)
	}
	if mag <= 0 {
		return 0, fmt.Errorf("invalid level-0 magnification %q: must be positive", spec)
	}
	return mag, nil
}

// Resolver converts magnifications and lengths between the levels of one
// pyramid. All coordinate conversions in the sampler go through Convert so
// they share a single truncation policy.
type Resolver struct {
	dims        []models.Dimensions
	downsamples []float64
	mags        []float64
	level0      float64
}

// NewResolver builds a Resolver for p assuming level 0 is at level0Mag.
func NewResolver(p Pyramid, level0Mag float64) *Resolver {
	dims := append([]models.Dimensions(nil), p.LevelDimensions()...)
	downsamples := append([]float64(nil), p.LevelDownsamples()...)

	mags := make([]float64, len(downsamples))
	for i, ds := range downsamples {
		mags[i] = level0Mag / ds
	}

	return &Resolver{
		dims:        dims,
		downsamples: downsamples,
		mags:        mags,
		level0:      level0Mag,
	}
}

// Level0Magnification returns the magnification the resolver was built with.
func (r *Resolver) Level0Magnification() float64 {
	return r.level0
}

// LevelCount returns the number of levels.
func (r *Resolver) LevelCount() int {
	return len(r.downsamples)
}

// Magnifications returns a copy of the per-level magnification table.
func (r *Resolver) Magnifications() []float64 {
	return append([]float64(nil), r.mags...)
}

// Magnification returns the magnification of level.
func (r *Resolver) Magnification(level int) float64 {
	return r.mags[level]
}

// Downsample returns the downsample factor of level.
func (r *Resolver) Downsample(level int) float64 {
	return r.downsamples[level]
}

// Dimensions returns the size of level.
func (r *Resolver) Dimensions(level int) models.Dimensions {
	return r.dims[level]
}

// ResolveLevel returns the level whose magnification is within tol of target.
// When several levels qualify the nearest wins, ties going to the lower
// index. The boolean is false when no level qualifies; callers must check it.
func (r *Resolver) ResolveLevel(target, tol float64) (int, bool) {
	best := -1
	bestDiff := math.Inf(1)
	for i, mag := range r.mags {
		diff := math.Abs(mag - target)
		if diff > tol {
			continue
		}
		if diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return best, best >= 0
}

// Convert rescales a length or coordinate from level from to level to,
// truncating toward zero.
func (r *Resolver) Convert(value, from, to int) int {
	return int(float64(value) * r.downsamples[from] / r.downsamples[to])
}

// LevelForDimensions returns the level whose size equals d exactly.
func (r *Resolver) LevelForDimensions(d models.Dimensions) (int, bool) {
	for i, dim := range r.dims {
		if dim == d {
			return i, true
		}
	}
	return -1, false
}
