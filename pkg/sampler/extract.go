package sampler

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
)

// Acceptance thresholds, in percent of the patch area.
const (
	// MinTissuePercent is the smallest share of tissue a patch may hold
	MinTissuePercent = 90

	// MaxMismatchPercent is the largest share of annotation pixels that may
	// carry a label other than the patch's class
	MaxMismatchPercent = 90
)

// Outcome is the result of one extraction attempt.
type Outcome int

const (
	// Accepted means the patch passed both checks.
	Accepted Outcome = iota
	// Exhausted means the class pool has no seed at the requested index.
	Exhausted
	// RejectedTissue means the patch holds too little tissue.
	RejectedTissue
	// RejectedAnnotation means too much of the patch carries another label.
	RejectedAnnotation
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Exhausted:
		return "exhausted"
	case RejectedTissue:
		return "rejected (tissue)"
	case RejectedAnnotation:
		return "rejected (annotation)"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Extract tries the i-th seed of the class at classIdx in Classes(). An
// accepted patch is returned with its record and pixels; rejections and
// exhaustion return only the outcome. Rejected seeds are never retried.
func (s *Sampler) Extract(classIdx, i int) (models.PatchRecord, image.Image, Outcome, error) {
	if !s.prepared {
		return models.PatchRecord{}, nil, 0, ErrNotPrepared
	}
	if classIdx < 0 || classIdx >= len(s.classes) {
		return models.PatchRecord{}, nil, 0, fmt.Errorf("class index %d out of range [0, %d)", classIdx, len(s.classes))
	}

	cs := s.classes[classIdx]
	if i < 0 || i >= len(cs.Pool) {
		return models.PatchRecord{}, nil, Exhausted, nil
	}
	seed := cs.Pool[i]

	region, err := s.slide.ReadRegion(seed.Col, seed.Row, s.level, s.patchSize, s.patchSize)
	if err != nil {
		return models.PatchRecord{}, nil, 0, fmt.Errorf("failed to read patch at (%d, %d): %w", seed.Row, seed.Col, err)
	}
	patch := toRGBA(region)

	// Tissue coverage in the mask's frame
	row := s.resolver.Convert(seed.Row, 0, s.mask.Level)
	col := s.resolver.Convert(seed.Col, 0, s.mask.Level)
	tissue := s.mask.CountWindow(row, col, s.maskPatchSize)
	if !enoughTissue(tissue, s.maskPatchSize*s.maskPatchSize) {
		return models.PatchRecord{}, nil, RejectedTissue, nil
	}

	if s.annotation != nil {
		labels, err := pyramid.ReadLabels(s.annotation, seed.Col, seed.Row, s.annLevel, s.patchSize, s.patchSize)
		if err != nil {
			return models.PatchRecord{}, nil, 0, fmt.Errorf("failed to read annotation at (%d, %d): %w", seed.Row, seed.Col, err)
		}
		mismatched := 0
		for _, v := range labels.Data {
			if v != cs.Class {
				mismatched++
			}
		}
		if tooInconsistent(mismatched, len(labels.Data)) {
			return models.PatchRecord{}, nil, RejectedAnnotation, nil
		}
	}

	rec := models.PatchRecord{
		ID:     s.imageID,
		Row:    seed.Row,
		Col:    seed.Col,
		Class:  cs.Class,
		Level:  s.level,
		Size:   s.patchSize,
		Parent: s.parent,
	}
	return rec, patch, Accepted, nil
}

// enoughTissue reports whether tissue of total cells reaches MinTissuePercent.
func enoughTissue(tissue, total int) bool {
	return tissue*100 >= MinTissuePercent*total
}

// tooInconsistent reports whether mismatched of total exceeds
// MaxMismatchPercent.
func tooInconsistent(mismatched, total int) bool {
	return mismatched*100 > MaxMismatchPercent*total
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
