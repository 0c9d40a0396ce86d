// Package config loads the run configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config contains all syncprobe settings.
type Config struct {
	// System describes the oscillator network the run probes.
	System SystemConfig `yaml:"system"`

	// Bounds is the initial coupling uncertainty applied to every pair.
	Bounds BoundsConfig `yaml:"bounds"`

	// Oracle tunes the ground-truth simulator.
	Oracle OracleConfig `yaml:"oracle"`

	// MOCU tunes the Monte Carlo uncertainty estimator.
	MOCU MOCUConfig `yaml:"mocu"`

	// Loop tunes the sequential design run itself.
	Loop LoopConfig `yaml:"loop"`

	// Strategy tunes candidate scoring.
	Strategy StrategyConfig `yaml:"strategy"`

	// Surrogate points at the trained predictor checkpoint, if any.
	Surrogate SurrogateConfig `yaml:"surrogate"`

	// Storage selects the persistence backend.
	Storage StorageConfig `yaml:"storage"`

	// Output is where run artifacts and plots land.
	Output OutputConfig `yaml:"output"`

	// Logging configures operational output.
	Logging LoggingConfig `yaml:"logging"`
}

// SystemConfig describes how the hidden ground-truth system is drawn.
type SystemConfig struct {
	Oscillators  int     `yaml:"oscillators"`
	FrequencyMin float64 `yaml:"frequency_min"`
	FrequencyMax float64 `yaml:"frequency_max"`
	CouplingMin  float64 `yaml:"coupling_min"`
	CouplingMax  float64 `yaml:"coupling_max"`
	Seed         int64   `yaml:"seed"`
}

// BoundsConfig is the initial interval shared by every pair.
type BoundsConfig struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// OracleConfig tunes the phase-dynamics simulator.
type OracleConfig struct {
	Dt              float64 `yaml:"dt"`
	Steps           int     `yaml:"steps"`
	BurnFraction    float64 `yaml:"burn_fraction"`
	SpreadTolerance float64 `yaml:"spread_tolerance"`
	Workers         int     `yaml:"workers"`
}

// MOCUConfig tunes the Monte Carlo MOCU estimator.
type MOCUConfig struct {
	MinSamples   int     `yaml:"min_samples"`
	MaxSamples   int     `yaml:"max_samples"`
	TargetStdErr float64 `yaml:"target_std_err"`
	OracleTrials int     `yaml:"oracle_trials"`
	BoostMax     float64 `yaml:"boost_max"`
	BisectIters  int     `yaml:"bisect_iters"`
}

// LoopConfig tunes the sequential design loop.
type LoopConfig struct {
	Steps            int    `yaml:"steps"`
	ExperimentTrials int    `yaml:"experiment_trials"`
	UpdatePolicy     string `yaml:"update_policy"`
	// ThresholdMargin pads threshold-policy narrowings so a true coupling
	// near the bisected sync boundary stays inside the interval.
	ThresholdMargin float64 `yaml:"threshold_margin"`
}

// StrategyConfig tunes candidate scoring.
type StrategyConfig struct {
	ProbSamples int `yaml:"prob_samples"`
	PairTrials  int `yaml:"pair_trials"`
}

// SurrogateConfig locates the predictor checkpoint for the MP strategies.
type SurrogateConfig struct {
	CheckpointPath string  `yaml:"checkpoint_path"`
	HiddenNeurons  int     `yaml:"hidden_neurons"`
	Scale          float64 `yaml:"scale"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// OutputConfig is where artifacts are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", "warn"
	// or "error".
	Level string `yaml:"level"`
}

// Default returns a Config with working defaults: a five-oscillator
// system with intrinsic frequencies spread over [-2, 2] and couplings
// uncertain over [0, 3].
func Default() *Config {
	return &Config{
		System: SystemConfig{
			Oscillators:  5,
			FrequencyMin: -2,
			FrequencyMax: 2,
			CouplingMin:  0.1,
			CouplingMax:  2.5,
			Seed:         1,
		},
		Bounds: BoundsConfig{Low: 0, High: 3},
		Oracle: OracleConfig{
			Dt:              0.01,
			Steps:           2400,
			BurnFraction:    0.75,
			SpreadTolerance: 1.5707963267948966,
		},
		MOCU: MOCUConfig{
			MinSamples:   64,
			MaxSamples:   512,
			TargetStdErr: 0.01,
			OracleTrials: 12,
			BoostMax:     8,
			BisectIters:  18,
		},
		Loop: LoopConfig{
			Steps:            4,
			ExperimentTrials: 64,
			UpdatePolicy:     "threshold",
			ThresholdMargin:  0.05,
		},
		Strategy: StrategyConfig{
			ProbSamples: 24,
			PairTrials:  8,
		},
		Surrogate: SurrogateConfig{
			HiddenNeurons: 32,
			Scale:         3,
		},
		Storage: StorageConfig{Backend: "memory"},
		Output:  OutputConfig{Dir: "out"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration: defaults, then the given YAML file if path is
// non-empty, then environment variable overrides.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	applyEnvOverrides(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.System.Oscillators < 2 {
		return fmt.Errorf("system.oscillators must be at least 2, got %d", c.System.Oscillators)
	}
	if c.System.FrequencyMin > c.System.FrequencyMax {
		return fmt.Errorf("system.frequency_min %g exceeds frequency_max %g", c.System.FrequencyMin, c.System.FrequencyMax)
	}
	if c.System.CouplingMin > c.System.CouplingMax {
		return fmt.Errorf("system.coupling_min %g exceeds coupling_max %g", c.System.CouplingMin, c.System.CouplingMax)
	}
	if c.Bounds.Low < 0 || c.Bounds.Low > c.Bounds.High {
		return fmt.Errorf("bounds [%g, %g] must satisfy 0 <= low <= high", c.Bounds.Low, c.Bounds.High)
	}
	if c.System.CouplingMin < c.Bounds.Low || c.System.CouplingMax > c.Bounds.High {
		return fmt.Errorf("system couplings [%g, %g] fall outside bounds [%g, %g]",
			c.System.CouplingMin, c.System.CouplingMax, c.Bounds.Low, c.Bounds.High)
	}
	if c.Oracle.Dt <= 0 {
		return fmt.Errorf("oracle.dt must be positive, got %g", c.Oracle.Dt)
	}
	if c.Loop.Steps <= 0 {
		return fmt.Errorf("loop.steps must be positive, got %d", c.Loop.Steps)
	}
	if c.Loop.ThresholdMargin < 0 {
		return fmt.Errorf("loop.threshold_margin must be non-negative, got %g", c.Loop.ThresholdMargin)
	}
	switch c.Loop.UpdatePolicy {
	case "", "threshold", "exact":
	default:
		return fmt.Errorf("loop.update_policy must be threshold or exact, got %s", c.Loop.UpdatePolicy)
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or sqlite, got %s", c.Storage.Backend)
	}
	validLevels := map[string]bool{"": true, "info": true, "debug": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SYNCPROBE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SYNCPROBE_OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}
	if v := os.Getenv("SYNCPROBE_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("SYNCPROBE_SQLITE_PATH"); v != "" {
		config.Storage.SQLitePath = v
	}
	if v := os.Getenv("SYNCPROBE_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.System.Seed = n
		}
	}
}
