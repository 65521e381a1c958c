// Package visualization renders annotation contours on slide thumbnails and
// writes raster images to disk.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
)

const (
	// DefaultThumbnailSize is the longest side of the overlay thumbnail
	DefaultThumbnailSize = 3000

	// ContourRadius is the disk radius used to dilate annotated regions
	ContourRadius = 10
)

// Binarize returns a row-major mask that is true wherever img is not black.
func Binarize(img image.Image) (mask []bool, width, height int) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	mask = make([]bool, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			mask[y*width+x] = g.Y != 0
		}
	}
	return mask, width, height
}

// Disk returns the offsets of a filled disk of the given radius.
func Disk(radius int) []image.Point {
	var pts []image.Point
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				pts = append(pts, image.Pt(dx, dy))
			}
		}
	}
	return pts
}

// Contour returns the ring of pixels that dilation by a disk of radius adds to
// mask, i.e. mask XOR dilate(mask).
func Contour(mask []bool, width, height, radius int) []bool {
	disk := Disk(radius)
	contour := make([]bool, len(mask))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !mask[y*width+x] || !onEdge(mask, width, height, x, y) {
				continue
			}

			// Stamp the disk around every edge pixel
			for _, d := range disk {
				nx, ny := x+d.X, y+d.Y
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				if !mask[ny*width+nx] {
					contour[ny*width+nx] = true
				}
			}
		}
	}
	return contour
}

// onEdge reports whether (x, y) has a 4-neighbour outside mask.
func onEdge(mask []bool, width, height, x, y int) bool {
	for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, ny := x+d.X, y+d.Y
		if nx < 0 || ny < 0 || nx >= width || ny >= height {
			continue
		}
		if !mask[ny*width+nx] {
			return true
		}
	}
	return false
}

// Overlay draws the annotation contour of ann in black on a copy of slide.
// ann is rescaled to slide's size when they differ.
func Overlay(slide, ann image.Image, radius int) *image.RGBA {
	sb := slide.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	draw.Draw(out, out.Bounds(), slide, sb.Min, draw.Src)

	if ab := ann.Bounds(); ab.Dx() != sb.Dx() || ab.Dy() != sb.Dy() {
		scaled := image.NewGray(out.Bounds())
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), ann, ab, draw.Src, nil)
		ann = scaled
	}

	mask, w, h := Binarize(ann)
	contour := Contour(mask, w, h, radius)
	for i, on := range contour {
		if on {
			out.SetRGBA(i%w, i/w, color.RGBA{A: 255})
		}
	}
	return out
}

// SaveAnnotationOverlay renders the annotation contour of ann over a
// thumbnail of slide and writes it to dir as <imageID>_annotation.png.
func SaveAnnotationOverlay(slide, ann pyramid.Pyramid, dir, imageID string, size int) (string, error) {
	if size <= 0 {
		size = DefaultThumbnailSize
	}

	slideThumb, err := slide.Thumbnail(size)
	if err != nil {
		return "", fmt.Errorf("failed to read slide thumbnail: %w", err)
	}
	annThumb, err := ann.Thumbnail(size)
	if err != nil {
		return "", fmt.Errorf("failed to read annotation thumbnail: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	filename := filepath.Join(dir, imageID+"_annotation.png")
	if err := SaveImage(Overlay(slideThumb, annThumb, ContourRadius), filename); err != nil {
		return "", err
	}
	return filename, nil
}

// SaveImage writes img to filename, as JPEG for .jpg/.jpeg names and PNG
// otherwise.
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	return file.Close()
}
