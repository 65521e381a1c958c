package pyramid

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// levelOrigin maps a level-0 anchor into the pixel frame of a level.
func levelOrigin(x, y int, downsample float64) image.Point {
	return image.Pt(
		int(math.Floor(float64(x)/downsample)),
		int(math.Floor(float64(y)/downsample)),
	)
}

// newLike allocates a width x height raster in a colour model suited to src:
// label and grayscale levels stay 8-bit gray, everything else becomes RGBA.
func newLike(src image.Image, width, height int) draw.Image {
	rect := image.Rect(0, 0, width, height)
	switch src.(type) {
	case *image.Gray, *image.Gray16, *image.Paletted:
		return image.NewGray(rect)
	default:
		return image.NewRGBA(rect)
	}
}

// cropRegion copies the width x height window of src whose top-left corner is
// origin (in src's own frame). Parts of the window outside src stay zero.
func cropRegion(src image.Image, origin image.Point, width, height int) image.Image {
	dst := newLike(src, width, height)
	sp := src.Bounds().Min.Add(origin)
	draw.Draw(dst, dst.Bounds(), src, sp, draw.Src)
	return dst
}

// scaleToFit scales src so that its longest side is at most maxSize. Gray
// rasters are treated as label maps and use nearest-neighbour sampling so no
// new label values are invented.
func scaleToFit(src image.Image, maxSize int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return cropRegion(src, image.Point{}, w, h)
	}

	scale := float64(maxSize) / float64(max(w, h))
	tw := max(1, int(float64(w)*scale))
	th := max(1, int(float64(h)*scale))

	dst := newLike(src, tw, th)
	var scaler draw.Scaler = draw.ApproxBiLinear
	if _, ok := dst.(*image.Gray); ok {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// thumbnailLevel picks the coarsest level that still has a side of at least
// maxSize, so thumbnails are rendered from as few pixels as possible.
func thumbnailLevel(widths, heights []int, maxSize int) int {
	level := 0
	for i := range widths {
		if max(widths[i], heights[i]) >= maxSize {
			level = i
		}
	}
	return level
}

// Downscale builds a pyramid level list from base by repeatedly halving it.
// The result has count levels, base first.
func Downscale(base image.Image, count int) []image.Image {
	levels := []image.Image{base}
	for i := 1; i < count; i++ {
		prev := levels[i-1].Bounds()
		w, h := max(1, prev.Dx()/2), max(1, prev.Dy()/2)
		dst := newLike(base, w, h)
		var scaler draw.Scaler = draw.ApproxBiLinear
		if _, ok := dst.(*image.Gray); ok {
			scaler = draw.NearestNeighbor
		}
		scaler.Scale(dst, dst.Bounds(), levels[i-1], prev, draw.Src, nil)
		levels = append(levels, dst)
	}
	return levels
}
