package sampler

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/patchframe"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/visualization"
)

// Result is the outcome of one sampling run.
type Result struct {
	Frame *patchframe.Frame

	// MaxPerClass is the cap the run was made with
	MaxPerClass int

	// Rejected is RejectedTissue + RejectedAnnotation
	Rejected           int
	RejectedTissue     int
	RejectedAnnotation int

	// PerClass is the number of accepted patches per class label
	PerClass map[uint8]int
}

// Sample walks every class pool in order and collects up to maxPerClass
// accepted patches per class. A class stops early when its pool runs out.
// The context is checked between extraction attempts.
func (s *Sampler) Sample(ctx context.Context, maxPerClass int) (*Result, error) {
	if maxPerClass <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCap, maxPerClass)
	}
	if !s.prepared {
		return nil, ErrNotPrepared
	}

	res := &Result{
		Frame:       patchframe.NewFrame(s.imageID),
		MaxPerClass: maxPerClass,
		PerClass:    make(map[uint8]int, len(s.classes)),
	}

	for ci, cs := range s.classes {
		accepted := 0
		tried := 0

	pool:
		for i := 0; accepted < maxPerClass; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			rec, patch, outcome, err := s.Extract(ci, i)
			if err != nil {
				return nil, err
			}

			switch outcome {
			case Exhausted:
				break pool
			case RejectedTissue:
				res.RejectedTissue++
			case RejectedAnnotation:
				res.RejectedAnnotation++
			case Accepted:
				res.Frame.Append(rec)
				accepted++
				if s.opts.PatchDir != "" {
					if err := s.savePatch(rec, patch); err != nil {
						return nil, err
					}
				}
			}
			tried++
		}

		res.PerClass[cs.Class] = accepted
		s.logger.Debug("class sampled",
			"image", s.imageID,
			"class", cs.Class,
			"accepted", accepted,
			"tried", tried,
			"pool", len(cs.Pool),
		)
	}

	res.Rejected = res.RejectedTissue + res.RejectedAnnotation
	return res, nil
}

// Save persists res as this image's patch frame in dir.
func (s *Sampler) Save(dir string, format patchframe.Format, res *Result) (string, error) {
	if s.opts.Verbose {
		s.logger.Info("rejected patches",
			"image", s.imageID,
			"rejected", res.Rejected,
			"tissue", res.RejectedTissue,
			"annotation", res.RejectedAnnotation,
		)
	}

	meta := patchframe.SessionMeta{
		Seed:          s.opts.Seed,
		Magnification: s.magnification,
		PatchSize:     s.patchSize,
		MaxPerClass:   res.MaxPerClass,
		Rejected:      res.Rejected,
	}

	s.logger.Info("saving patch frame", "image", s.imageID, "dir", dir, "patches", res.Frame.Len())
	path, err := patchframe.Save(dir, res.Frame, format, meta)
	if err != nil {
		return "", fmt.Errorf("failed to save patch frame for %s: %w", s.imageID, err)
	}
	return path, nil
}

// savePatch writes an accepted patch to PatchDir/<imageID>/.
func (s *Sampler) savePatch(rec models.PatchRecord, patch image.Image) error {
	dir := filepath.Join(s.opts.PatchDir, s.imageID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating patch directory: %w", err)
	}
	name := fmt.Sprintf("c%d_h%d_w%d_l%d.png", rec.Class, rec.Row, rec.Col, rec.Level)
	return visualization.SaveImage(patch, filepath.Join(dir, name))
}
