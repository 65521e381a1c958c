package main

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/config"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/patchframe"
	"github.com/Asish-Kumar/WholeSlideImageSampler/pkg/pyramid"
)

func defaultTestConfig() *config.Config {
	return config.DefaultConfig()
}

// writeTestSlide stores a 64px, 4-level slide with a pink square in the
// middle as a directory pyramid and returns its path
func writeTestSlide(t *testing.T, root, name string) string {
	t.Helper()

	base := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{R: 245, G: 245, B: 245, A: 255}
			if x >= 16 && x < 48 && y >= 16 && y < 48 {
				c = color.RGBA{R: 200, G: 60, B: 150, A: 255}
			}
			base.SetRGBA(x, y, c)
		}
	}

	dir := filepath.Join(root, name)
	if err := pyramid.WriteDirectory(dir, pyramid.Downscale(base, 4), nil, 10); err != nil {
		t.Fatalf("WriteDirectory failed: %v", err)
	}
	return dir
}

// writeTestAnnotation stores a label pyramid matching writeTestSlide
func writeTestAnnotation(t *testing.T, root, name string) {
	t.Helper()

	var levels []image.Image
	for _, size := range []int{64, 32, 16, 8} {
		img := image.NewGray(image.Rect(0, 0, size, size))
		for y := size / 4; y < size/2; y++ {
			for x := size / 4; x < size/2; x++ {
				img.SetGray(x, y, color.Gray{Y: 1})
			}
		}
		levels = append(levels, img)
	}
	if err := pyramid.WriteDirectory(filepath.Join(root, name), levels, nil, 10); err != nil {
		t.Fatalf("WriteDirectory failed: %v", err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestSampleCommand(t *testing.T) {
	root := t.TempDir()
	slide := writeTestSlide(t, filepath.Join(root, "slides"), "case-1")
	outDir := filepath.Join(root, "frames")

	out, err := execute(t, "sample",
		"-c", filepath.Join(root, "missing.yaml"),
		"--tissue-mask-dir", filepath.Join(root, "masks"),
		"-m", "5", "-p", "4", "-n", "2",
		"-o", outDir, "-f", "csv", "-w", "1",
		slide,
	)
	if err != nil {
		t.Fatalf("sample failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "case-1") || !strings.Contains(out, "accepted=2") {
		t.Errorf("Unexpected report %q", out)
	}

	frame, err := patchframe.Load(filepath.Join(outDir, "case-1_patchframe.csv"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if frame.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", frame.Len())
	}
	for _, rec := range frame.Records {
		if rec.Class != 0 || rec.Level != 1 || rec.Size != 4 || rec.Parent != slide {
			t.Errorf("Unexpected record %+v", rec)
		}
	}

	if _, err := os.Stat(filepath.Join(root, "masks", "case-1_tm.tmask")); err != nil {
		t.Errorf("Expected a cached tissue mask: %v", err)
	}
}

func TestSampleCommandReportsFailures(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, "sample",
		"-c", filepath.Join(root, "missing.yaml"),
		"--tissue-mask-dir", filepath.Join(root, "masks"),
		"-o", filepath.Join(root, "frames"),
		filepath.Join(root, "nope.tif"),
	)
	if err == nil {
		t.Fatal("Expected an error for a missing slide")
	}
	if !strings.Contains(out, "FAILED") {
		t.Errorf("Expected the failure in the report, got %q", out)
	}
}

func TestSampleCommandInvalidConfig(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, "sample", "-c", filepath.Join(root, "missing.yaml"), "-p", "0", "slide.tif")
	if err == nil || !strings.Contains(err.Error(), "configuration error") {
		t.Errorf("Expected a configuration error, got %v", err)
	}
}

func TestMaskCommand(t *testing.T) {
	root := t.TempDir()
	slide := writeTestSlide(t, filepath.Join(root, "slides"), "case-2")
	masks := filepath.Join(root, "masks")

	out, err := execute(t, "mask", "--log-json", "-c", filepath.Join(root, "missing.yaml"), "--tissue-mask-dir", masks, slide)
	if err != nil {
		t.Fatalf("mask failed: %v", err)
	}
	want := filepath.Join(masks, "case-2_tm.tmask")
	if !strings.Contains(out, want) {
		t.Errorf("Expected %s in the report, got %q", want, out)
	}
}

func TestVisualizeCommand(t *testing.T) {
	root := t.TempDir()
	slide := writeTestSlide(t, filepath.Join(root, "slides"), "case-3")
	annotations := filepath.Join(root, "annotations")
	writeTestAnnotation(t, annotations, "case-3_annotation")
	visDir := filepath.Join(root, "vis")

	_, err := execute(t, "visualize",
		"-c", filepath.Join(root, "missing.yaml"),
		"--tissue-mask-dir", filepath.Join(root, "masks"),
		"--annotation-dir", annotations,
		"--vis-dir", visDir,
		"--size", "32",
		slide,
	)
	if err != nil {
		t.Fatalf("visualize failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(visDir, "case-3_annotation.png")); err != nil {
		t.Errorf("Expected an overlay image: %v", err)
	}

	if _, err := execute(t, "visualize", "-c", filepath.Join(root, "missing.yaml"), slide); err == nil {
		t.Error("Expected an error without an annotation directory")
	}
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "wsisampler.yaml")

	out, err := execute(t, "init", "-o", path)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("Expected the path in the output, got %q", out)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected a valid config, got %v", err)
	}

	if _, err := execute(t, "init", "-o", path); err == nil {
		t.Error("Expected an error when the file exists")
	}
	if _, err := execute(t, "init", "-o", path, "-f"); err != nil {
		t.Errorf("Expected -f to overwrite, got %v", err)
	}
}
