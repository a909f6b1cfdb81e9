// Package config loads csgcloud settings from CSGCLOUD_* environment
// variables. Command-line flags override these values.
package config

import (
	"fmt"
	"time"

	"github.com/chazu/csgcloud/pkg/export"
	"github.com/chazu/csgcloud/pkg/logging"
	"github.com/chazu/csgcloud/pkg/scene"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name.
const Prefix = "CSGCLOUD"

// Config holds csgcloud settings read from the environment. The last four
// only apply to the HTTP server.
type Config struct {
	Density     string        `envconfig:"DENSITY" default:"low"`
	Seed        uint64        `envconfig:"SEED" default:"1"`
	Parallel    int           `envconfig:"PARALLEL" default:"0"`
	Format      string        `envconfig:"FORMAT" default:"json"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	EvalTimeout time.Duration `envconfig:"EVAL_TIMEOUT" default:"5s"`
	Addr        string        `envconfig:"ADDR" default:":8080"`
	MaxDensity  int           `envconfig:"MAX_DENSITY" default:"100000"`
	MaxPoints   int           `envconfig:"MAX_POINTS" default:"10000000"`
	MaxEvals    int           `envconfig:"MAX_EVALS" default:"8"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every field parses.
func (c *Config) Validate() error {
	if _, err := scene.Density(c.Density); err != nil {
		return fmt.Errorf("config: %s_DENSITY: %w", Prefix, err)
	}
	if _, err := export.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("config: %s_FORMAT: %w", Prefix, err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %s_LOG_LEVEL: %w", Prefix, err)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("config: %s_PARALLEL must be >= 0, got %d", Prefix, c.Parallel)
	}
	if c.EvalTimeout <= 0 {
		return fmt.Errorf("config: %s_EVAL_TIMEOUT must be positive, got %s", Prefix, c.EvalTimeout)
	}
	if c.MaxDensity <= 0 {
		return fmt.Errorf("config: %s_MAX_DENSITY must be positive, got %d", Prefix, c.MaxDensity)
	}
	if c.MaxPoints <= 0 {
		return fmt.Errorf("config: %s_MAX_POINTS must be positive, got %d", Prefix, c.MaxPoints)
	}
	if c.MaxEvals <= 0 {
		return fmt.Errorf("config: %s_MAX_EVALS must be positive, got %d", Prefix, c.MaxEvals)
	}
	return nil
}
