package tissuemask

import (
	"fmt"
	"image"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
)

// Generator computes a tissue mask for one level of a pyramid. The result
// must be sized to that level (Rows = height, Cols = width).
type Generator interface {
	Generate(p pyramid.Pyramid, level int) (*Mask, error)
}

// OtsuGenerator separates stained tissue from the bright, unsaturated glass
// background by thresholding HSV saturation with Otsu's method.
type OtsuGenerator struct {
	// Bins is the number of histogram bins used to search for the threshold
	Bins int

	// MinSaturation is a floor for the threshold, so an almost empty slide
	// does not turn faint noise into tissue
	MinSaturation float64
}

// NewOtsuGenerator returns a generator with 256 bins and a 0.05 floor.
func NewOtsuGenerator() *OtsuGenerator {
	return &OtsuGenerator{Bins: 256, MinSaturation: 0.05}
}

// Generate implements Generator.
func (g *OtsuGenerator) Generate(p pyramid.Pyramid, level int) (*Mask, error) {
	dims := p.LevelDimensions()
	if level < 0 || level >= len(dims) {
		return nil, fmt.Errorf("%w: %d", pyramid.ErrInvalidLevel, level)
	}
	d := dims[level]

	img, err := p.ReadRegion(0, 0, level, d.Width, d.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to read tissue mask level: %w", err)
	}

	sat := saturation(img)
	threshold := max(g.threshold(sat), g.MinSaturation)

	m := New(d.Height, d.Width, level)
	for i, s := range sat {
		m.Data[i] = s > threshold
	}
	return m, nil
}

// threshold returns the Otsu threshold of values in [0, 1].
func (g *OtsuGenerator) threshold(values []float64) float64 {
	bins := g.Bins
	if bins < 2 {
		bins = 256
	}
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	// The last divider sits just above 1 so saturation 1 lands in the top bin.
	dividers := floats.Span(make([]float64, bins+1), 0, 1+1e-9)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	centers := make([]float64, bins)
	for i := range centers {
		centers[i] = (dividers[i] + dividers[i+1]) / 2
	}

	total := floats.Sum(counts)
	sumAll := floats.Dot(counts, centers)

	var (
		best     float64
		bestT    = -1
		w0, sum0 float64
	)
	for t := 0; t < bins-1; t++ {
		w0 += counts[t]
		sum0 += counts[t] * centers[t]
		w1 := total - w0
		if w0 == 0 || w1 == 0 {
			continue
		}
		mu0 := sum0 / w0
		mu1 := (sumAll - sum0) / w1
		between := w0 * w1 * (mu0 - mu1) * (mu0 - mu1)
		if between > best {
			best = between
			bestT = t
		}
	}

	if bestT < 0 {
		return 0
	}
	return dividers[bestT+1]
}

// saturation returns the HSV saturation of every pixel, row by row.
func saturation(img image.Image) []float64 {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			hi := max(r, g, bl)
			lo := min(r, g, bl)
			if hi == 0 {
				out = append(out, 0)
				continue
			}
			out = append(out, float64(hi-lo)/float64(hi))
		}
	}
	return out
}
