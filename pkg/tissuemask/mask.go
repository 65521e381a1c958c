// Package tissuemask obtains the boolean tissue-presence mask of a pyramid
// image, either from an on-disk cache or by generating and caching it.
package tissuemask

import (
	"errors"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
)

var (
	// ErrNotBoolean is returned when a mask does not hold boolean values.
	ErrNotBoolean = errors.New("tissue mask not boolean")

	// ErrNoMatchingLevel is returned when a cached mask's size matches no
	// pyramid level.
	ErrNoMatchingLevel = errors.New("tissue mask matches no pyramid level")

	// ErrNoMaskLevel is returned when no level is close enough to the
	// tissue-mask magnification to generate a mask at.
	ErrNoMaskLevel = errors.New("no pyramid level near the tissue-mask magnification")

	// ErrCorruptCache is returned when a cache file's header does not
	// describe its contents.
	ErrCorruptCache = errors.New("corrupt tissue mask cache file")
)

// Mask is a row-major boolean raster of one pyramid level. true marks tissue.
type Mask struct {
	// Rows is the height of the mask level
	Rows int

	// Cols is the width of the mask level
	Cols int

	// Level is the pyramid level the mask was computed at
	Level int

	// Data holds Rows*Cols values, row by row
	Data []bool
}

// New allocates an all-background mask.
func New(rows, cols, level int) *Mask {
	return &Mask{
		Rows:  rows,
		Cols:  cols,
		Level: level,
		Data:  make([]bool, rows*cols),
	}
}

// Dimensions returns the mask size as level dimensions (width = Cols).
func (m *Mask) Dimensions() models.Dimensions {
	return models.Dimensions{Width: m.Cols, Height: m.Rows}
}

// At reports whether (row, col) is tissue. Cells outside the mask are not.
func (m *Mask) At(row, col int) bool {
	if row < 0 || col < 0 || row >= m.Rows || col >= m.Cols {
		return false
	}
	return m.Data[row*m.Cols+col]
}

// Set marks (row, col).
func (m *Mask) Set(row, col int, v bool) {
	m.Data[row*m.Cols+col] = v
}

// Count returns the number of tissue cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// CountWindow returns the number of tissue cells in the side x side window
// whose top-left cell is (row, col). The window may extend past the mask.
func (m *Mask) CountWindow(row, col, side int) int {
	r0, r1 := max(row, 0), min(row+side, m.Rows)
	c0, c1 := max(col, 0), min(col+side, m.Cols)

	n := 0
	for r := r0; r < r1; r++ {
		line := m.Data[r*m.Cols : (r+1)*m.Cols]
		for c := c0; c < c1; c++ {
			if line[c] {
				n++
			}
		}
	}
	return n
}

// Equal reports whether two masks have the same size and values.
func (m *Mask) Equal(o *Mask) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}
