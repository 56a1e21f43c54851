// Package config loads tagd's configuration, adapted from
// adred-codev-ws_poc/ws/config.go's env-tag-plus-Validate shape: a struct
// of env-tagged fields with defaults, an optional on-disk overlay, and a
// Validate pass before anything starts serving.
//
// The overlay file uses HUJSON (JSON with comments and trailing commas)
// instead of adred's .env file, since tagd's configuration is structural
// (instance/message bounds) rather than a flat list of secrets —
// github.com/tailscale/hujson is the pack's only JSON-with-comments
// reader, so it gets the config-file job instead of reinventing env-file
// parsing for a feature .env files don't need (nested keys).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"
)

// Config holds tagd's read-only-after-load settings.
type Config struct {
	// Addr is the address tagd's HTTP server (metrics + snapshot) binds.
	Addr string `env:"TAGD_ADDR" envDefault:":9090" json:"addr"`

	// MaxInstances is spec.md §6's N, the instance table size.
	MaxInstances int `env:"TAGD_MAX_INSTANCES" envDefault:"256" json:"maxInstances"`

	// MaxMessageSize is spec.md §6's M, the per-message byte bound.
	MaxMessageSize int `env:"TAGD_MAX_MESSAGE_SIZE" envDefault:"4096" json:"maxMessageSize"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"TAGD_LOG_LEVEL" envDefault:"info" json:"logLevel"`

	// LogFormat is one of json, pretty.
	LogFormat string `env:"TAGD_LOG_FORMAT" envDefault:"json" json:"logFormat"`
}

// Load reads defaults and environment variables into a Config, then — if
// path is non-empty — overlays a HUJSON file on top of the env-derived
// values. A field the file sets overrides both its default and any
// environment variable; a field the file leaves out keeps its
// environment-derived or default value. Validate runs after both passes.
func Load(path string, logger *zerolog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		std, err := hujson.Standardize(raw)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := json.Unmarshal(std, cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
		}
		if logger != nil {
			logger.Info().Str("path", path).Msg("loaded config overlay")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for values the rest of the
// service cannot sensibly run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("TAGD_ADDR is required")
	}
	if c.MaxInstances < 1 {
		return fmt.Errorf("TAGD_MAX_INSTANCES must be > 0, got %d", c.MaxInstances)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("TAGD_MAX_MESSAGE_SIZE must be >= 0, got %d", c.MaxMessageSize)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("TAGD_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("TAGD_LOG_FORMAT must be one of json, pretty (got %q)", c.LogFormat)
	}
	return nil
}

// LogConfig emits the loaded configuration as one structured event.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("addr", c.Addr).
		Int("max_instances", c.MaxInstances).
		Int("max_message_size", c.MaxMessageSize).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("tagd configuration loaded")
}
