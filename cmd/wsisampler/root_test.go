package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.Use != "wsisampler" {
		t.Errorf("expected use 'wsisampler', got %q", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("expected non-empty descriptions")
	}
	if cmd.Version == "" {
		t.Error("expected non-empty version")
	}

	flag := cmd.PersistentFlags().Lookup("verbose")
	if flag == nil {
		t.Fatal("expected verbose flag")
	}
	if flag.Shorthand != "v" || flag.DefValue != "false" {
		t.Errorf("unexpected verbose flag %q default %q", flag.Shorthand, flag.DefValue)
	}
	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("expected config flag")
	}
	if cmd.PersistentFlags().Lookup("log-json") == nil {
		t.Error("expected log-json flag")
	}

	want := map[string]bool{"sample": false, "mask": false, "visualize": false, "init": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := NewRootCmd()

	sample, _, err := cmd.Find([]string{"sample"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if err := sample.ParseFlags([]string{"-m", "20", "-p", "128", "--seed", "9", "-f", "csv", "--level0", "40"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	cfg := defaultTestConfig()
	if err := applyFlags(sample, cfg); err != nil {
		t.Fatalf("applyFlags failed: %v", err)
	}

	if cfg.Sampling.Magnification != 20 || cfg.Sampling.PatchSize != 128 || cfg.Sampling.Seed != 9 {
		t.Errorf("Sampling flags not applied: %+v", cfg.Sampling)
	}
	if cfg.Output.Format != "csv" || cfg.Slide.Level0Magnification != "40" {
		t.Errorf("Expected csv and level 0 40, got %q and %q", cfg.Output.Format, cfg.Slide.Level0Magnification)
	}
	// unset flags keep the file's values
	if cfg.Sampling.MaxPerClass != 100 {
		t.Errorf("Expected max per class to stay 100, got %d", cfg.Sampling.MaxPerClass)
	}
}
