// Package config holds the immutable grading configuration.
//
// A Config is built once (Default, then optionally overlaid from YAML by
// Load), validated, and handed to every component. Components treat it as
// read-only; no package reads configuration from globals.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Config holds all grader configuration.
type Config struct {
	Layout   LayoutConfig   `yaml:"layout"`
	Zones    ZonesConfig    `yaml:"zones"`
	Marks    MarksConfig    `yaml:"marks"`
	Grading  GradingConfig  `yaml:"grading"`
	Detector DetectorConfig `yaml:"detector"`
	Batch    BatchConfig    `yaml:"batch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LayoutConfig describes the printed sheet.
type LayoutConfig struct {
	// Zones is the number of answer blocks on the page.
	Zones int `yaml:"zones"`

	// RowsPerZone is the number of questions stacked in each block.
	RowsPerZone int `yaml:"rows_per_zone"`

	// Options are the column labels, left to right.
	Options []omr.Option `yaml:"options"`
}

// Questions returns the total question count on the sheet.
func (l LayoutConfig) Questions() int {
	return l.Zones * l.RowsPerZone
}

// BatchConfig configures multi-sheet runs.
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig configures the zap logger built by the CLI.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the configuration for the standard 30-question,
// two-block, five-option sheet.
func DefaultConfig() *Config {
	return &Config{
		Layout: LayoutConfig{
			Zones:       2,
			RowsPerZone: 15,
			Options:     []omr.Option{"A", "B", "C", "D", "E"},
		},
		Zones:    defaultZonesConfig(),
		Marks:    defaultMarksConfig(),
		Grading:  GradingConfig{AmbiguousPolicy: AmbiguousAsWrong},
		Detector: DetectorConfig{Format: SidecarJSON},
		Batch:    BatchConfig{Workers: 4},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if lvl := os.Getenv("OMR_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = strings.ToLower(lvl)
	}
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.Layout.Zones < 1 {
		return fmt.Errorf("layout.zones must be at least 1, got %d", c.Layout.Zones)
	}
	if c.Layout.RowsPerZone < 1 {
		return fmt.Errorf("layout.rows_per_zone must be at least 1, got %d", c.Layout.RowsPerZone)
	}
	if len(c.Layout.Options) == 0 {
		return fmt.Errorf("layout.options must not be empty")
	}
	seen := make(map[omr.Option]bool, len(c.Layout.Options))
	for _, opt := range c.Layout.Options {
		if opt == "" || opt == omr.Invalid {
			return fmt.Errorf("layout.options: %q is not a usable option label", opt)
		}
		if seen[opt] {
			return fmt.Errorf("layout.options: duplicate label %q", opt)
		}
		seen[opt] = true
	}

	if err := c.Zones.validate(c.Layout.Zones); err != nil {
		return err
	}
	if err := c.Marks.validate(seen); err != nil {
		return err
	}

	switch c.Grading.AmbiguousPolicy {
	case AmbiguousAsWrong, AmbiguousDistinct:
	default:
		return fmt.Errorf("grading.ambiguous_policy: unknown policy %q", c.Grading.AmbiguousPolicy)
	}

	switch c.Detector.Format {
	case SidecarJSON, SidecarYOLO:
	default:
		return fmt.Errorf("detector.format: unknown format %q", c.Detector.Format)
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	return nil
}
