package seeds

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/tissuemask"
)

// createLabelPyramid builds a 3-level gray pyramid (32, 16, 8 pixels) whose
// pixels are given by label(row, col) at each level's own resolution
func createLabelPyramid(t *testing.T, label func(level, row, col int) uint8) *pyramid.Memory {
	t.Helper()

	var levels []image.Image
	for level, size := range []int{32, 16, 8} {
		img := image.NewGray(image.Rect(0, 0, size, size))
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				img.SetGray(col, row, color.Gray{Y: label(level, row, col)})
			}
		}
		levels = append(levels, img)
	}

	p, err := pyramid.NewMemory(levels, []float64{1, 2, 4}, 40)
	if err != nil {
		t.Fatalf("Failed to build label pyramid: %v", err)
	}
	return p
}

// createFullMask returns an all-tissue mask at level 2 (8x8)
func createFullMask() *tissuemask.Mask {
	m := tissuemask.New(8, 8, 2)
	for i := range m.Data {
		m.Data[i] = true
	}
	return m
}

// stripes labels columns by quarter: 1, 2, then unlabeled
func stripes(level, row, col int) uint8 {
	size := 32 >> level
	switch {
	case col < size/4:
		return 1
	case col < size/2:
		return 2
	default:
		return 0
	}
}

// TestGenerateBackgroundOnly checks the class-0 pool without annotation
func TestGenerateBackgroundOnly(t *testing.T) {
	slide := createLabelPyramid(t, func(int, int, int) uint8 { return 0 })
	r := pyramid.NewResolver(slide, 40)

	mask := tissuemask.New(8, 8, 2)
	mask.Set(1, 2, true)
	mask.Set(5, 7, true)
	mask.Set(7, 0, true)

	classes, err := Generate(mask, r, nil, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(classes) != 1 || classes[0].Class != 0 {
		t.Fatalf("Expected only class 0, got %d classes", len(classes))
	}

	pool := classes[0].Pool
	if len(pool) != 3 {
		t.Fatalf("Expected 3 seeds, got %d", len(pool))
	}
	expected := map[models.Coordinate]bool{
		{Row: 4, Col: 8}:   true,
		{Row: 20, Col: 28}: true,
		{Row: 28, Col: 0}:  true,
	}
	for _, c := range pool {
		if !expected[c] {
			t.Errorf("Unexpected seed %+v", c)
		}
		delete(expected, c)
	}
}

// TestGenerateReproducible checks that a fixed seed fixes the pool order
func TestGenerateReproducible(t *testing.T) {
	slide := createLabelPyramid(t, func(int, int, int) uint8 { return 0 })
	r := pyramid.NewResolver(slide, 40)
	mask := createFullMask()

	a, err := Generate(mask, r, nil, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	b, err := Generate(mask, r, nil, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	c, err := Generate(mask, r, nil, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	same, differs := true, false
	for i := range a[0].Pool {
		if a[0].Pool[i] != b[0].Pool[i] {
			same = false
		}
		if a[0].Pool[i] != c[0].Pool[i] {
			differs = true
		}
	}
	if !same {
		t.Error("Expected identical pools for the same seed")
	}
	if !differs {
		t.Error("Expected a different order for a different seed")
	}
}

// TestGenerateClassPoolsDisjoint checks pools for classes {0, 1, 2} are
// pairwise disjoint and together cover every tissue pixel once
func TestGenerateClassPoolsDisjoint(t *testing.T) {
	slide := createLabelPyramid(t, func(int, int, int) uint8 { return 0 })
	r := pyramid.NewResolver(slide, 40)

	ann, err := NewAnnotation(createLabelPyramid(t, stripes), 40, 10, 0.5)
	if err != nil {
		t.Fatalf("NewAnnotation failed: %v", err)
	}
	if ann.Level != 2 {
		t.Fatalf("Expected seeding level 2, got %d", ann.Level)
	}

	classes, err := Generate(createFullMask(), r, ann, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(classes) != 3 {
		t.Fatalf("Expected 3 classes, got %d", len(classes))
	}

	expectedSizes := []int{32, 16, 16}
	owner := make(map[models.Coordinate]uint8)
	for i, cs := range classes {
		if cs.Class != uint8(i) {
			t.Errorf("Expected class %d at position %d, got %d", i, i, cs.Class)
		}
		if len(cs.Pool) != expectedSizes[i] {
			t.Errorf("Expected %d seeds for class %d, got %d", expectedSizes[i], cs.Class, len(cs.Pool))
		}
		for _, c := range cs.Pool {
			if prev, ok := owner[c]; ok {
				t.Errorf("Seed %+v in both class %d and class %d", c, prev, cs.Class)
			}
			owner[c] = cs.Class

			if want := stripes(0, c.Row, c.Col); want != cs.Class {
				t.Errorf("Seed %+v of class %d lies on label %d", c, cs.Class, want)
			}
		}
	}
	if len(owner) != 64 {
		t.Errorf("Expected the pools to cover 64 pixels, got %d", len(owner))
	}
}

// TestGenerateRequiresBackgroundLabel rejects annotations without zeros
func TestGenerateRequiresBackgroundLabel(t *testing.T) {
	slide := createLabelPyramid(t, func(int, int, int) uint8 { return 0 })
	r := pyramid.NewResolver(slide, 40)

	ann, err := NewAnnotation(createLabelPyramid(t, func(int, int, int) uint8 { return 5 }), 40, 10, 0.5)
	if err != nil {
		t.Fatalf("NewAnnotation failed: %v", err)
	}

	if _, err := Generate(createFullMask(), r, ann, rand.New(rand.NewSource(1))); !errors.Is(err, ErrNoBackgroundLabel) {
		t.Errorf("Expected ErrNoBackgroundLabel, got %v", err)
	}
}

// TestNewAnnotationNoLevel checks the low-magnification lookup failure
func TestNewAnnotationNoLevel(t *testing.T) {
	_, err := NewAnnotation(createLabelPyramid(t, stripes), 40, 1.25, 0.5)
	if !errors.Is(err, ErrNoAnnotationLevel) {
		t.Errorf("Expected ErrNoAnnotationLevel, got %v", err)
	}
}
