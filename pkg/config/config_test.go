package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the defaults are valid and match the sampler's
// documented settings
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
	if cfg.Slide.Level0Magnification != "infer" {
		t.Errorf("Expected level 0 magnification infer, got %q", cfg.Slide.Level0Magnification)
	}
	if cfg.TissueMask.Magnification != 1.25 || cfg.TissueMask.Tolerance != 10 {
		t.Errorf("Unexpected tissue mask level selection %g ± %g", cfg.TissueMask.Magnification, cfg.TissueMask.Tolerance)
	}
	if cfg.Sampling.LevelTolerance != 0.01 {
		t.Errorf("Expected level tolerance 0.01, got %g", cfg.Sampling.LevelTolerance)
	}
	if filepath.Base(cfg.TissueMask.Dir) != "tissue_masks" {
		t.Errorf("Unexpected tissue mask dir %s", cfg.TissueMask.Dir)
	}
	if cfg.Processing.NumCores < 1 {
		t.Errorf("Expected at least one core, got %d", cfg.Processing.NumCores)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sampling.PatchSize != DefaultConfig().Sampling.PatchSize {
		t.Errorf("Expected default patch size, got %d", cfg.Sampling.PatchSize)
	}
}

func TestSaveLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Slide.Level0Magnification = "40"
	cfg.Sampling.PatchSize = 512
	cfg.Annotation.Dir = "/data/annotations"
	cfg.Output.Format = "csv"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Slide.Level0Magnification != "40" || loaded.Sampling.PatchSize != 512 ||
		loaded.Annotation.Dir != "/data/annotations" || loaded.Output.Format != "csv" {
		t.Errorf("Loaded config differs: %+v", loaded)
	}
}

// TestPartialConfig checks that keys missing from the file keep their
// defaults
func TestPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "sampling:\n  magnification: 20\n  maxPerClass: 5\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sampling.Magnification != 20 || cfg.Sampling.MaxPerClass != 5 {
		t.Errorf("Expected file values, got %g and %d", cfg.Sampling.Magnification, cfg.Sampling.MaxPerClass)
	}
	if cfg.Sampling.PatchSize != 256 {
		t.Errorf("Expected default patch size 256, got %d", cfg.Sampling.PatchSize)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("sampling: [unclosed"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected a parse error")
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config file to exist: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"level 0 text", func(c *Config) { c.Slide.Level0Magnification = "forty" }, ErrInvalidLevel0},
		{"level 0 negative", func(c *Config) { c.Slide.Level0Magnification = "-40" }, ErrInvalidLevel0},
		{"sampling magnification", func(c *Config) { c.Sampling.Magnification = 0 }, ErrInvalidMagnification},
		{"mask magnification", func(c *Config) { c.TissueMask.Magnification = -1 }, ErrInvalidMagnification},
		{"tolerance", func(c *Config) { c.Annotation.Tolerance = -0.5 }, ErrInvalidTolerance},
		{"patch size", func(c *Config) { c.Sampling.PatchSize = 0 }, ErrInvalidPatchSize},
		{"cap", func(c *Config) { c.Sampling.MaxPerClass = -3 }, ErrInvalidCap},
		{"cores", func(c *Config) { c.Processing.NumCores = 0 }, ErrInvalidCores},
		{"format", func(c *Config) { c.Output.Format = "pickle" }, ErrInvalidFormat},
		{"numeric level 0", func(c *Config) { c.Slide.Level0Magnification = "20" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
