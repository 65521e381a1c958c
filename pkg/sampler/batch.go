package sampler

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
)

// BatchResult is the outcome of processing one slide in a batch.
type BatchResult struct {
	Path    string
	ImageID string

	// Output is the file the slide produced, such as its patch frame
	Output string

	Accepted int
	Rejected int

	// Err is the error the slide failed with, if any
	Err error
}

// SlideFunc processes one slide and fills in the counts and output of its
// BatchResult.
type SlideFunc func(ctx context.Context, path string) (BatchResult, error)

// RunBatch runs fn over paths with at most workers slides in flight. Slides
// that share an image identifier run one after the other so they never touch
// the same tissue mask cache file at once. Results are returned in the order
// of paths; a failing slide is recorded in its result and does not stop the
// others. The returned error is only set when ctx is cancelled.
func RunBatch(ctx context.Context, paths []string, workers int, fn SlideFunc, logger *slog.Logger) ([]BatchResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}

	// Group by image identifier, keeping first-seen order
	var order []string
	groups := make(map[string][]int)
	for i, p := range paths {
		id := pyramid.ImageID(p)
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	logger.Info("starting batch sampling",
		"slides", len(paths),
		"images", len(order),
		"workers", workers,
	)

	results := make([]BatchResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, id := range order {
		id := id
		indices := groups[id]
		g.Go(func() error {
			for _, i := range indices {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				logger.Info("sampling slide", "path", paths[i], "index", i+1, "total", len(paths))

				res, err := fn(ctx, paths[i])
				res.Path = paths[i]
				res.ImageID = id
				res.Err = err
				if err != nil {
					logger.Error("slide failed", "path", paths[i], "error", err)
				}
				results[i] = res
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
