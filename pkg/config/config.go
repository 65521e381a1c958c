// Package config provides configuration loading and management for wsisampler.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// AppName names the XDG directories used for defaults.
const AppName = "wsisampler"

// Validation errors.
var (
	ErrInvalidMagnification = errors.New("magnification must be positive")
	ErrInvalidPatchSize     = errors.New("patch size must be positive")
	ErrInvalidCap           = errors.New("max patches per class must be positive")
	ErrInvalidTolerance     = errors.New("tolerance must not be negative")
	ErrInvalidLevel0        = errors.New(`level 0 magnification must be "infer" or a positive number`)
	ErrInvalidFormat        = errors.New(`output format must be "sqlite" or "csv"`)
	ErrInvalidCores         = errors.New("number of cores must be positive")
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Slide parameters
	Slide struct {
		// Level0Magnification is the magnification of level 0 ("40"), or
		// "infer" to read it from the slide
		Level0Magnification string `yaml:"level0Magnification"`
	} `yaml:"slide"`

	// Tissue mask parameters
	TissueMask struct {
		// Dir is where tissue masks are cached
		Dir string `yaml:"dir"`

		// Magnification is the target magnification for new masks
		Magnification float64 `yaml:"magnification"`

		// Tolerance is how far the mask level may be from Magnification
		Tolerance float64 `yaml:"tolerance"`

		// Bins is the histogram resolution of the Otsu threshold
		Bins int `yaml:"bins"`

		// MinSaturation is the lowest saturation ever counted as tissue
		MinSaturation float64 `yaml:"minSaturation"`
	} `yaml:"tissueMask"`

	// Annotation parameters
	Annotation struct {
		// Dir holds annotation pyramids; empty disables annotations
		Dir string `yaml:"dir"`

		// Magnification is the low-resolution level used for seeding
		Magnification float64 `yaml:"magnification"`

		// Tolerance is how far the seeding level may be from Magnification
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"annotation"`

	// Sampling parameters
	Sampling struct {
		// Magnification is the magnification patches are read at
		Magnification float64 `yaml:"magnification"`

		// PatchSize is the patch side length in pixels
		PatchSize int `yaml:"patchSize"`

		// MaxPerClass caps the accepted patches per class
		MaxPerClass int `yaml:"maxPerClass"`

		// LevelTolerance is how close the sampling level must be
		LevelTolerance float64 `yaml:"levelTolerance"`

		// Seed fixes the sampling order
		Seed int64 `yaml:"seed"`
	} `yaml:"sampling"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many slides are sampled in parallel
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir receives the patch frames
		Dir string `yaml:"dir"`

		// Format is "sqlite" or "csv"
		Format string `yaml:"format"`

		// PatchDir, when set, receives accepted patches as PNG files
		PatchDir string `yaml:"patchDir"`

		// VisualizationDir receives annotation overlays
		VisualizationDir string `yaml:"visualizationDir"`

		// ThumbnailSize is the longest side of annotation overlays
		ThumbnailSize int `yaml:"thumbnailSize"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Slide.Level0Magnification = "infer"

	cfg.TissueMask.Dir = filepath.Join(CacheDir(), "tissue_masks")
	cfg.TissueMask.Magnification = 1.25
	cfg.TissueMask.Tolerance = 10.0
	cfg.TissueMask.Bins = 256
	cfg.TissueMask.MinSaturation = 0.05

	cfg.Annotation.Magnification = 1.25
	cfg.Annotation.Tolerance = 20.0

	cfg.Sampling.Magnification = 10.0
	cfg.Sampling.PatchSize = 256
	cfg.Sampling.MaxPerClass = 100
	cfg.Sampling.LevelTolerance = 0.01
	cfg.Sampling.Seed = 1

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Output.Dir = filepath.Join(DataDir(), "patchframes")
	cfg.Output.Format = "sqlite"
	cfg.Output.VisualizationDir = filepath.Join(DataDir(), "visualizations")
	cfg.Output.ThumbnailSize = 3000
	cfg.Output.Verbose = false

	return cfg
}

// CacheDir returns the XDG cache directory for wsisampler.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DataDir returns the XDG data directory for wsisampler.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultConfigPath returns the config file location under the XDG config
// directory.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the values that would otherwise fail deep inside a
// sampling run. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Slide.Level0Magnification != "infer" {
		v, err := strconv.ParseFloat(c.Slide.Level0Magnification, 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidLevel0, c.Slide.Level0Magnification)
		}
	}

	if c.Sampling.Magnification <= 0 {
		return fmt.Errorf("%w: sampling %g", ErrInvalidMagnification, c.Sampling.Magnification)
	}
	if c.TissueMask.Magnification <= 0 {
		return fmt.Errorf("%w: tissue mask %g", ErrInvalidMagnification, c.TissueMask.Magnification)
	}
	if c.Annotation.Magnification <= 0 {
		return fmt.Errorf("%w: annotation %g", ErrInvalidMagnification, c.Annotation.Magnification)
	}

	for name, tol := range map[string]float64{
		"sampling":    c.Sampling.LevelTolerance,
		"tissue mask": c.TissueMask.Tolerance,
		"annotation":  c.Annotation.Tolerance,
	} {
		if tol < 0 {
			return fmt.Errorf("%w: %s %g", ErrInvalidTolerance, name, tol)
		}
	}

	if c.Sampling.PatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPatchSize, c.Sampling.PatchSize)
	}
	if c.Sampling.MaxPerClass <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCap, c.Sampling.MaxPerClass)
	}
	if c.Processing.NumCores <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCores, c.Processing.NumCores)
	}

	switch c.Output.Format {
	case "sqlite", "csv":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	return nil
}
