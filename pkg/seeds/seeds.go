// Package seeds turns tissue-mask and annotation pixels into per-class pools
// of level-0 coordinates from which patches are sampled.
package seeds

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/tissuemask"
)

var (
	// ErrNoBackgroundLabel is returned when an annotation has no unlabeled
	// (0) pixels at its seeding level, which means it is degenerate.
	ErrNoBackgroundLabel = errors.New("annotation has no unlabeled (0) pixels")

	// ErrNoAnnotationLevel is returned when no annotation level is close
	// enough to the low-magnification target.
	ErrNoAnnotationLevel = errors.New("no annotation level near the low-magnification target")
)

// ClassSeeds is the shuffled pool of level-0 coordinates for one class.
type ClassSeeds struct {
	Class uint8
	Pool  []models.Coordinate
}

// Annotation is a label pyramid together with the low-resolution level its
// seeds are drawn from.
type Annotation struct {
	Pyramid  pyramid.Pyramid
	Resolver *pyramid.Resolver

	// Level is the low-resolution level read for seeding
	Level int

	labels *pyramid.LabelMap
}

// NewAnnotation prepares p for seeding. Its magnifications are derived from
// level0Mag, and the seeding level is the one nearest target within tol.
func NewAnnotation(p pyramid.Pyramid, level0Mag, target, tol float64) (*Annotation, error) {
	r := pyramid.NewResolver(p, level0Mag)
	level, ok := r.ResolveLevel(target, tol)
	if !ok {
		return nil, fmt.Errorf("%w: target %.2fx, available %v", ErrNoAnnotationLevel, target, r.Magnifications())
	}
	return &Annotation{Pyramid: p, Resolver: r, Level: level}, nil
}

// Labels reads (once) and returns the seeding level as labels.
func (a *Annotation) Labels() (*pyramid.LabelMap, error) {
	if a.labels != nil {
		return a.labels, nil
	}
	lm, err := pyramid.ReadLevelLabels(a.Pyramid, a.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation level %d: %w", a.Level, err)
	}
	a.labels = lm
	return lm, nil
}

// Generate builds the class pools. Class 0 comes first and holds every tissue
// pixel of mask that is not annotated; when ann is non-nil one pool per
// distinct non-zero label follows in ascending label order. Every pool is
// shuffled once with rng, so a fixed seed reproduces the pools exactly.
func Generate(mask *tissuemask.Mask, r *pyramid.Resolver, ann *Annotation, rng *rand.Rand) ([]ClassSeeds, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var labels *pyramid.LabelMap
	if ann != nil {
		lm, err := ann.Labels()
		if err != nil {
			return nil, err
		}
		labels = lm
	}

	background := make([]models.Coordinate, 0, mask.Count())
	for row := 0; row < mask.Rows; row++ {
		for col := 0; col < mask.Cols; col++ {
			if !mask.At(row, col) {
				continue
			}
			c := models.Coordinate{
				Row: r.Convert(row, mask.Level, 0),
				Col: r.Convert(col, mask.Level, 0),
			}
			if labels != nil {
				label := labels.At(ann.Resolver.Convert(c.Row, 0, ann.Level), ann.Resolver.Convert(c.Col, 0, ann.Level))
				if label != 0 {
					continue
				}
			}
			background = append(background, c)
		}
	}
	shuffle(rng, background)

	classes := []ClassSeeds{{Class: 0, Pool: background}}
	if labels == nil {
		return classes, nil
	}

	var present [256]bool
	for _, v := range labels.Data {
		present[v] = true
	}
	if !present[0] {
		return nil, ErrNoBackgroundLabel
	}

	pools := make(map[uint8][]models.Coordinate)
	for row := 0; row < labels.Rows; row++ {
		for col := 0; col < labels.Cols; col++ {
			v := labels.Data[row*labels.Cols+col]
			if v == 0 {
				continue
			}
			pools[v] = append(pools[v], models.Coordinate{
				Row: ann.Resolver.Convert(row, ann.Level, 0),
				Col: ann.Resolver.Convert(col, ann.Level, 0),
			})
		}
	}

	for v := 1; v < len(present); v++ {
		if !present[v] {
			continue
		}
		pool := pools[uint8(v)]
		shuffle(rng, pool)
		classes = append(classes, ClassSeeds{Class: uint8(v), Pool: pool})
	}

	return classes, nil
}

func shuffle(rng *rand.Rand, pool []models.Coordinate) {
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
}
