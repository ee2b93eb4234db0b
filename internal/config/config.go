// Package config holds solver settings and the well-known names the
// engine treats specially.
//
// Settings are read from traitsolver.yaml, found by walking up from the
// working directory. Every field is optional; zero values are replaced by
// defaults after validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level traitsolver.yaml configuration.
type Config struct {
	// RecursionLimit is the obligation depth at which selection reports
	// overflow and aborts the compilation unit.
	RecursionLimit int `yaml:"recursion_limit,omitempty"`

	// SimilarImplLimit caps the impls listed under an unimplemented-trait error.
	SimilarImplLimit int `yaml:"similar_impl_limit,omitempty"`

	// CoherenceWorkers is the number of goroutines used for overlap checks.
	// Defaults to GOMAXPROCS.
	CoherenceWorkers int `yaml:"coherence_workers,omitempty"`

	// Color is one of "auto", "always" or "never".
	Color string `yaml:"color,omitempty"`

	// Metadata is the path to the crate metadata database used to resolve
	// extern crates. Relative paths are resolved against the config file.
	Metadata string `yaml:"metadata,omitempty"`

	// Verbose enables the session log.
	Verbose bool `yaml:"verbose,omitempty"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a traitsolver.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses traitsolver.yaml content from bytes.
// The path argument is used for error messages and to anchor relative paths.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if cfg.Metadata != "" && !filepath.IsAbs(cfg.Metadata) && path != "" {
		cfg.Metadata = filepath.Join(filepath.Dir(path), cfg.Metadata)
	}
	return &cfg, nil
}

// FindConfig searches for traitsolver.yaml starting from dir and walking up
// to parent directories. Returns an empty path and nil error if none exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.RecursionLimit < 0 {
		return fmt.Errorf("%s: recursion_limit must not be negative (got %d)", path, c.RecursionLimit)
	}
	if c.SimilarImplLimit < 0 {
		return fmt.Errorf("%s: similar_impl_limit must not be negative (got %d)", path, c.SimilarImplLimit)
	}
	if c.CoherenceWorkers < 0 {
		return fmt.Errorf("%s: coherence_workers must not be negative (got %d)", path, c.CoherenceWorkers)
	}
	switch c.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%s: color must be one of %q, %q, %q (got %q)",
			path, ColorAuto, ColorAlways, ColorNever, c.Color)
	}
	return nil
}

// setDefaults fills in default values for optional fields.
func (c *Config) setDefaults() {
	if c.RecursionLimit == 0 {
		c.RecursionLimit = DefaultRecursionLimit
	}
	if c.SimilarImplLimit == 0 {
		c.SimilarImplLimit = DefaultSimilarImplLimit
	}
	if c.CoherenceWorkers == 0 {
		c.CoherenceWorkers = runtime.GOMAXPROCS(0)
	}
	if c.Color == "" {
		c.Color = ColorAuto
	}
}
