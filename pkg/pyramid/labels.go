package pyramid

import (
	"image"
	"image/color"
)

// LabelMap is a row-major raster of 8-bit label values read from an
// annotation pyramid. 0 means unlabeled.
type LabelMap struct {
	Rows int
	Cols int
	Data []uint8
}

// At returns the label at (row, col), or 0 outside the map.
func (l *LabelMap) At(row, col int) uint8 {
	if row < 0 || col < 0 || row >= l.Rows || col >= l.Cols {
		return 0
	}
	return l.Data[row*l.Cols+col]
}

// Labels converts img to single-channel label values. Gray rasters are used
// as they are; colour rasters go through the luminance conversion.
func Labels(img image.Image) *LabelMap {
	b := img.Bounds()
	lm := &LabelMap{Rows: b.Dy(), Cols: b.Dx(), Data: make([]uint8, b.Dx()*b.Dy())}

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < lm.Rows; y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(lm.Data[y*lm.Cols:(y+1)*lm.Cols], g.Pix[off:off+lm.Cols])
		}
		return lm
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			lm.Data[i] = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			i++
		}
	}
	return lm
}

// ReadLabels reads a region of p and converts it to labels.
func ReadLabels(p Pyramid, x, y, level, width, height int) (*LabelMap, error) {
	img, err := p.ReadRegion(x, y, level, width, height)
	if err != nil {
		return nil, err
	}
	return Labels(img), nil
}

// ReadLevelLabels reads the whole of level as labels.
func ReadLevelLabels(p Pyramid, level int) (*LabelMap, error) {
	if err := checkRegion(p, level, 1, 1); err != nil {
		return nil, err
	}
	d := p.LevelDimensions()[level]
	return ReadLabels(p, 0, 0, level, d.Width, d.Height)
}
