// Package config loads and validates the classifier's YAML configuration
// record: mode, logging verbosity, model location, list paths, and the
// per-signal (timeframe/HMM/entropy/length/reject) settings consumed by
// the decision pipeline.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects whether the classifier evaluates traffic or trains a
// model from it.
type Mode string

const (
	ModeSimple Mode = "SIMPLE"
	ModeLearn  Mode = "LEARN"
)

// Verbosity controls which classifications get logged; it is purely
// observational and never affects scoring.
type Verbosity string

const (
	VerbosityAll        Verbosity = "ALL"
	VerbosityAllowOnly  Verbosity = "ALLOW_ONLY"
	VerbosityRejectOnly Verbosity = "REJECT_ONLY"
	VerbosityNone       Verbosity = "NONE"
)

// Config is the configuration record consumed by the decision pipeline
// (C6) and the trainer/evaluator drivers (C7/C8).
type Config struct {
	Mode      Mode      `yaml:"mode"`
	Verbosity Verbosity `yaml:"verbosity"`

	Model ModelConfig `yaml:"model"`

	Blacklist string `yaml:"blacklist"`
	Whitelist string `yaml:"whitelist"`

	Timeframe TimeframeConfig `yaml:"timeframe"`
	HMM       HMMConfig       `yaml:"hmm"`
	Entropy   EntropyConfig   `yaml:"entropy"`
	Length    LengthConfig    `yaml:"length"`
	Reject    RejectConfig    `yaml:"reject"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// ModelConfig locates the trained artifact. Weight, multiplied by the
// number of bins, is the observation weight each entropy window's
// histogram is rebuilt with from the artifact's distribution.
type ModelConfig struct {
	Filename string  `yaml:"filename"`
	Weight   float64 `yaml:"weight"`
}

// TimeframeConfig bounds how many queries (counted across all sources
// together) are tolerated within a trailing period.
type TimeframeConfig struct {
	Enabled    bool    `yaml:"enabled"`
	PeriodSecs int64   `yaml:"period_secs"`
	MaxQueries uint64  `yaml:"max_queries"`
	Penalty    float64 `yaml:"penalty"`
}

// HMMConfig enables and weighs the HMM-based score.
type HMMConfig struct {
	Enabled   bool    `yaml:"enabled"`
	MinLength int     `yaml:"min_length"`
	Bias      float64 `yaml:"bias"`
	Weight    float64 `yaml:"weight"`
}

// EntropyConfig enables and weighs the entropy-window-based score.
type EntropyConfig struct {
	Enabled   bool    `yaml:"enabled"`
	MinLength int     `yaml:"min_length"`
	Bias      float64 `yaml:"bias"`
	Weight    float64 `yaml:"weight"`

	// WindowWidths lists the entropy window widths to maintain; each
	// gets its own streaming window and trained distribution.
	WindowWidths []int `yaml:"window_widths"`
	Bins         int   `yaml:"bins"`
}

// LengthConfig bounds domain-name length. MinLength is the length below
// which the classifier reports MIN_LENGTH. In the trainer, Percentile
// selects the artifact's query_max_length (MaxLength is used only when
// the dataset is empty) and MaxLengthPenalty is copied into the
// artifact; in the evaluator, max length and penalty instead come from
// the loaded artifact.
type LengthConfig struct {
	MinLength        int     `yaml:"min_length"`
	MaxLength        int     `yaml:"max_length"`
	MaxLengthPenalty float64 `yaml:"max_length_penalty"`
	Percentile       float64 `yaml:"percentile"`
}

// RejectConfig sets the final score threshold and how long a rejecting
// source should be penalized before re-evaluation.
type RejectConfig struct {
	BlockPeriod int64   `yaml:"block_period"`
	Threshold   float64 `yaml:"threshold"`
}

// MetricsConfig controls the optional in-process Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfig returns a configuration with conservative defaults,
// suitable as a starting point for Load when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Mode:      ModeSimple,
		Verbosity: VerbosityRejectOnly,
		Model: ModelConfig{
			Filename: "model.bin",
			Weight:   1.0,
		},
		Blacklist: "",
		Whitelist: "",
		Timeframe: TimeframeConfig{
			Enabled:    true,
			PeriodSecs: 60,
			MaxQueries: 120,
			Penalty:    -5.0,
		},
		HMM: HMMConfig{
			Enabled:   true,
			MinLength: 4,
			Bias:      0,
			Weight:    1.0,
		},
		Entropy: EntropyConfig{
			Enabled:      true,
			MinLength:    4,
			Bias:         0,
			Weight:       1.0,
			WindowWidths: []int{64, 256, 1024},
			Bins:         100,
		},
		Length: LengthConfig{
			MinLength:        1,
			MaxLength:        253,
			MaxLengthPenalty: 0.1,
			Percentile:       0.999,
		},
		Reject: RejectConfig{
			BlockPeriod: 3600,
			Threshold:   0,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9477",
		},
	}
}

// Load reads and parses a YAML configuration file, expanding
// environment variable references, and merging over DefaultConfig so
// unset fields keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is internally consistent
// enough to build a classifier from.
func (c *Config) Validate() error {
	if c.Mode != ModeSimple && c.Mode != ModeLearn {
		return fmt.Errorf("config: mode must be SIMPLE or LEARN, got %q", c.Mode)
	}

	if c.Mode == ModeSimple && c.Model.Filename == "" {
		return fmt.Errorf("config: model.filename is required in SIMPLE mode")
	}

	if c.Timeframe.Enabled && c.Timeframe.PeriodSecs <= 0 {
		return fmt.Errorf("config: timeframe.period_secs must be positive when enabled")
	}

	if c.HMM.Enabled && c.HMM.MinLength < 1 {
		return fmt.Errorf("config: hmm.min_length must be at least 1 when enabled")
	}

	if c.Entropy.Enabled {
		if c.Entropy.MinLength < 1 {
			return fmt.Errorf("config: entropy.min_length must be at least 1 when enabled")
		}
		if len(c.Entropy.WindowWidths) == 0 {
			return fmt.Errorf("config: entropy.window_widths must be non-empty when enabled")
		}
		if c.Entropy.Bins < 1 {
			return fmt.Errorf("config: entropy.bins must be at least 1 when enabled")
		}
	}

	if !c.HMM.Enabled && !c.Entropy.Enabled {
		return fmt.Errorf("config: at least one of hmm or entropy must be enabled")
	}

	if c.Length.MaxLength < c.Length.MinLength {
		return fmt.Errorf("config: length.max_length must be >= length.min_length")
	}

	return nil
}
