package pyramid

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/tiff"
	"gopkg.in/yaml.v3"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
)

// ManifestName is the file that describes a directory pyramid.
const ManifestName = "pyramid.yaml"

// Manifest lists the level files of a directory pyramid.
//
//	objective_power: 40
//	levels:
//	  - file: level0.tif
//	  - file: level1.tif
//	    downsample: 4
type Manifest struct {
	ObjectivePower float64         `yaml:"objective_power,omitempty"`
	Levels         []ManifestLevel `yaml:"levels"`
}

// ManifestLevel is one level of a directory pyramid. A zero Downsample is
// derived from the level width relative to level 0.
type ManifestLevel struct {
	File       string  `yaml:"file"`
	Downsample float64 `yaml:"downsample,omitempty"`
}

// Directory is a pyramid stored as one image file per level next to a
// manifest. Level rasters are decoded on first use and kept afterwards.
type Directory struct {
	root        string
	files       []string
	dims        []models.Dimensions
	downsamples []float64
	objective   float64

	mu     sync.Mutex
	levels map[int]image.Image
}

// OpenDirectory opens the directory pyramid described by the manifest at
// manifestPath. Only the level headers are read here.
func OpenDirectory(manifestPath string) (*Directory, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pyramid manifest: %w", err)
	}

	var mf Manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse pyramid manifest: %w", err)
	}
	if len(mf.Levels) == 0 {
		return nil, fmt.Errorf("pyramid manifest %s lists no levels", manifestPath)
	}

	d := &Directory{
		root:        filepath.Dir(manifestPath),
		files:       make([]string, len(mf.Levels)),
		dims:        make([]models.Dimensions, len(mf.Levels)),
		downsamples: make([]float64, len(mf.Levels)),
		objective:   mf.ObjectivePower,
		levels:      make(map[int]image.Image),
	}

	for i, lvl := range mf.Levels {
		d.files[i] = filepath.Join(d.root, lvl.File)
		cfg, err := decodeConfig(d.files[i])
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		d.dims[i] = models.Dimensions{Width: cfg.Width, Height: cfg.Height}

		switch {
		case i == 0:
			d.downsamples[i] = 1
		case lvl.Downsample > 0:
			d.downsamples[i] = lvl.Downsample
		default:
			d.downsamples[i] = float64(d.dims[0].Width) / float64(max(1, cfg.Width))
		}
	}

	return d, nil
}

// OpenImage loads a single image file as a one-level pyramid.
func OpenImage(path string) (*Memory, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemory([]image.Image{img}, []float64{1}, 0)
}

// WriteDirectory stores levels as TIFF files in dir together with a manifest
// so that OpenDirectory can read them back.
func WriteDirectory(dir string, levels []image.Image, downsamples []float64, objectivePower float64) error {
	if len(levels) == 0 {
		return errors.New("pyramid: at least one level is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating pyramid directory: %w", err)
	}

	mf := Manifest{ObjectivePower: objectivePower}
	for i, lvl := range levels {
		name := fmt.Sprintf("level%d.tif", i)
		if err := encodeTIFF(filepath.Join(dir, name), lvl); err != nil {
			return fmt.Errorf("level %d: %w", i, err)
		}
		ml := ManifestLevel{File: name}
		if i < len(downsamples) {
			ml.Downsample = downsamples[i]
		}
		mf.Levels = append(mf.Levels, ml)
	}

	data, err := yaml.Marshal(&mf)
	if err != nil {
		return fmt.Errorf("error marshaling pyramid manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestName), data, 0644)
}

// LevelDimensions implements Pyramid.
func (d *Directory) LevelDimensions() []models.Dimensions {
	return d.dims
}

// LevelDownsamples implements Pyramid.
func (d *Directory) LevelDownsamples() []float64 {
	return d.downsamples
}

// ObjectivePower implements Pyramid.
func (d *Directory) ObjectivePower() (float64, bool) {
	return d.objective, d.objective > 0
}

// ReadRegion implements Pyramid.
func (d *Directory) ReadRegion(x, y, level, width, height int) (image.Image, error) {
	if err := checkRegion(d, level, width, height); err != nil {
		return nil, err
	}
	img, err := d.level(level)
	if err != nil {
		return nil, err
	}
	return cropRegion(img, levelOrigin(x, y, d.downsamples[level]), width, height), nil
}

// Thumbnail implements Pyramid.
func (d *Directory) Thumbnail(maxSize int) (image.Image, error) {
	widths := make([]int, len(d.dims))
	heights := make([]int, len(d.dims))
	for i, dim := range d.dims {
		widths[i], heights[i] = dim.Width, dim.Height
	}
	img, err := d.level(thumbnailLevel(widths, heights, maxSize))
	if err != nil {
		return nil, err
	}
	return scaleToFit(img, maxSize), nil
}

// Close drops the decoded levels.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.levels = make(map[int]image.Image)
	return nil
}

func (d *Directory) level(i int) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img, ok := d.levels[i]; ok {
		return img, nil
	}
	img, err := decodeFile(d.files[i])
	if err != nil {
		return nil, fmt.Errorf("level %d: %w", i, err)
	}
	b := img.Bounds()
	if b.Dx() != d.dims[i].Width || b.Dy() != d.dims[i].Height {
		return nil, fmt.Errorf("level %d: decoded size %dx%d does not match header %dx%d",
			i, b.Dx(), b.Dy(), d.dims[i].Width, d.dims[i].Height)
	}
	d.levels[i] = img
	return img, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func encodeTIFF(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return err
	}
	return f.Close()
}
