// Package config provides configuration loading and management for modisdestripe.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"modisdestripe/pkg/destripe"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many detectors are processed in parallel
		NumCores int `yaml:"numCores"`

		// MedianShift selects which pixels the median restoration moves: "valid" or "all"
		MedianShift string `yaml:"medianShift"`

		// MaxBandBytes caps the working memory of one band; 0 disables the cap
		MaxBandBytes int64 `yaml:"maxBandBytes"`
	} `yaml:"processing"`

	// Band configuration tables
	BandConfig struct {
		// Dir holds the per-mode tables, e.g. MOD021KM_destripe_config.dat
		Dir string `yaml:"dir"`

		// File overrides the per-mode table when set
		File string `yaml:"file"`
	} `yaml:"bandConfig"`

	// Output parameters
	Output struct {
		// QuicklookDir receives before/after JPEGs of every band when set
		QuicklookDir string `yaml:"quicklookDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Run ledger
	Ledger struct {
		// Path of the SQLite ledger; empty disables it
		Path string `yaml:"path"`
	} `yaml:"ledger"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.MedianShift = destripe.ShiftValidOnly.String()
	cfg.Processing.MaxBandBytes = 0

	cfg.BandConfig.Dir = "data"

	cfg.Output.Verbose = true

	return cfg
}

// Validate checks values that cannot be repaired by defaults.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("processing.numCores must not be negative, got %d", c.Processing.NumCores)
	}
	if c.Processing.MaxBandBytes < 0 {
		return fmt.Errorf("processing.maxBandBytes must not be negative, got %d", c.Processing.MaxBandBytes)
	}
	if _, err := destripe.ParseMedianShiftPolicy(c.Processing.MedianShift); err != nil {
		return fmt.Errorf("processing.medianShift: %w", err)
	}
	return nil
}

// BandConfigPath returns the band table to use for a mode whose default
// table is named fileName.
func (c *Config) BandConfigPath(fileName string) string {
	if c.BandConfig.File != "" {
		return c.BandConfig.File
	}
	return filepath.Join(c.BandConfig.Dir, fileName)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

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
