package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := `
system:
  oscillators: 7
  seed: 42
loop:
  steps: 9
  update_policy: exact
storage:
  backend: sqlite
  sqlite_path: /tmp/syncprobe.db
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.System.Oscillators != 7 || cfg.System.Seed != 42 {
		t.Fatalf("system overrides not applied: %+v", cfg.System)
	}
	if cfg.Loop.Steps != 9 || cfg.Loop.UpdatePolicy != "exact" {
		t.Fatalf("loop overrides not applied: %+v", cfg.Loop)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath != "/tmp/syncprobe.db" {
		t.Fatalf("storage overrides not applied: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging override not applied: %+v", cfg.Logging)
	}
	// Untouched sections keep their defaults.
	if cfg.MOCU.MaxSamples != 512 || cfg.Bounds.High != 3 {
		t.Fatalf("defaults lost during file load: %+v", cfg)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected missing config file to fail")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"one oscillator", func(c *Config) { c.System.Oscillators = 1 }, "oscillators"},
		{"inverted frequencies", func(c *Config) { c.System.FrequencyMin = 3; c.System.FrequencyMax = -3 }, "frequency_min"},
		{"negative bounds", func(c *Config) { c.Bounds.Low = -1 }, "bounds"},
		{"couplings outside bounds", func(c *Config) { c.System.CouplingMax = 99 }, "outside bounds"},
		{"zero dt", func(c *Config) { c.Oracle.Dt = 0 }, "oracle.dt"},
		{"zero steps", func(c *Config) { c.Loop.Steps = 0 }, "loop.steps"},
		{"bogus policy", func(c *Config) { c.Loop.UpdatePolicy = "maybe" }, "update_policy"},
		{"negative threshold margin", func(c *Config) { c.Loop.ThresholdMargin = -0.1 }, "threshold_margin"},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = "sqlite" }, "sqlite_path"},
		{"bogus backend", func(c *Config) { c.Storage.Backend = "postgres" }, "backend"},
		{"bogus level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation failure", tc.name)
		}
		if !strings.Contains(err.Error(), tc.message) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.message, err)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SYNCPROBE_LOG_LEVEL", "warn")
	t.Setenv("SYNCPROBE_OUTPUT_DIR", "elsewhere")
	t.Setenv("SYNCPROBE_STORAGE_BACKEND", "sqlite")
	t.Setenv("SYNCPROBE_SQLITE_PATH", "/tmp/override.db")
	t.Setenv("SYNCPROBE_SEED", "99")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("log level override not applied: %s", cfg.Logging.Level)
	}
	if cfg.Output.Dir != "elsewhere" {
		t.Fatalf("output dir override not applied: %s", cfg.Output.Dir)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath != "/tmp/override.db" {
		t.Fatalf("storage overrides not applied: %+v", cfg.Storage)
	}
	if cfg.System.Seed != 99 {
		t.Fatalf("seed override not applied: %d", cfg.System.Seed)
	}
}

func TestEnvSeedIgnoresGarbage(t *testing.T) {
	t.Setenv("SYNCPROBE_SEED", "not-a-number")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.System.Seed != Default().System.Seed {
		t.Fatalf("non-numeric seed must be ignored, got %d", cfg.System.Seed)
	}
}
