// Package config loads the whisper-cli defaults file: an optional YAML
// document that sets the CLI's fallback archive spec, aggregation policy,
// and I/O discipline so common invocations don't have to repeat every flag.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds whisper-cli's defaults, layered under whatever flags the
// invocation supplies.
type Config struct {
	// Create holds defaults for the `create` subcommand.
	Create CreateDefaults `yaml:"create"`

	// IO holds I/O defaults; only the `create` subcommand consults them.
	IO IODefaults `yaml:"io"`
}

// CreateDefaults configures the archive spec and consolidation policy used
// when `create` is invoked without the corresponding flags.
type CreateDefaults struct {
	// Retentions is a comma-separated retention spec, e.g. "60s:1d,1h:30d".
	Retentions string `yaml:"retentions"`

	// XFilesFactor is the fraction of a coarse slot's window that must be
	// known before it's consolidated.
	XFilesFactor float64 `yaml:"x_files_factor"`

	// Aggregation is the consolidation method token (average, sum, ...).
	Aggregation string `yaml:"aggregation"`

	// Sparse creates files with holes instead of zero-filling them.
	Sparse bool `yaml:"sparse"`
}

// IODefaults configures locking behavior for the `create` subcommand.
type IODefaults struct {
	// Lock makes `create` hold an advisory lock even without -lock.
	Lock bool `yaml:"lock"`
}

// Load reads and validates a whisper-cli defaults file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the built-in defaults used when no config file is
// given, matching whisper's own module-level defaults.
func DefaultConfig() *Config {
	return &Config{
		Create: CreateDefaults{
			Retentions:   "60s:1d,15m:30d",
			XFilesFactor: 0.5,
			Aggregation:  "average",
		},
		IO: IODefaults{
			Lock: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Create.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("create: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the create-defaults section.
func (c *CreateDefaults) Validate() error {
	var errs []error
	if c.Retentions == "" {
		errs = append(errs, errors.New("retentions is required"))
	}
	if c.XFilesFactor < 0 || c.XFilesFactor > 1 {
		errs = append(errs, errors.New("x_files_factor must be between 0 and 1"))
	}
	switch c.Aggregation {
	case "average", "sum", "last", "max", "min", "avg_zero", "absmax", "absmin", "":
	default:
		errs = append(errs, fmt.Errorf("aggregation %q is not a known method", c.Aggregation))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
