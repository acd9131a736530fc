// Package config provides configuration management for the burst2safe
// tool.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from
// environment variables. Command-line flags override these values.
type Config struct {
	Search   SearchConfig   `envPrefix:"SEARCH_"`
	Download DownloadConfig `envPrefix:"DOWNLOAD_"`
	Assembly AssemblyConfig `envPrefix:"ASSEMBLY_"`
	Logging  LoggingConfig  `envPrefix:"LOG_"`
}

// SearchConfig contains catalog client configuration.
type SearchConfig struct {
	// Backend specifies which catalog to query: "asf" or "stac".
	Backend     string        `env:"BACKEND" envDefault:"asf"`
	ASFBaseURL  string        `env:"ASF_BASE_URL" envDefault:"https://api.daac.asf.alaska.edu"`
	STACBaseURL string        `env:"STAC_BASE_URL" envDefault:"https://cmr.earthdata.nasa.gov/stac/ASF"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// DownloadConfig contains burst extractor download configuration.
type DownloadConfig struct {
	Concurrency       int           `env:"CONCURRENCY" envDefault:"4"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"5"`
	MaxWait           time.Duration `env:"MAX_WAIT" envDefault:"2m"`
}

// AssemblyConfig contains product assembly configuration.
type AssemblyConfig struct {
	MinBursts int `env:"MIN_BURSTS" envDefault:"1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Search.Backend != "asf" && c.Search.Backend != "stac" {
		return fmt.Errorf("search backend must be 'asf' or 'stac', got %q", c.Search.Backend)
	}
	if c.Search.ASFBaseURL == "" {
		return fmt.Errorf("ASF base URL is required")
	}
	if c.Search.STACBaseURL == "" {
		return fmt.Errorf("STAC base URL is required")
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search timeout must be positive, got %s", c.Search.Timeout)
	}

	if c.Download.Concurrency < 1 {
		return fmt.Errorf("download concurrency must be at least 1, got %d", c.Download.Concurrency)
	}
	if c.Download.RequestsPerSecond <= 0 {
		return fmt.Errorf("download request rate must be positive, got %g", c.Download.RequestsPerSecond)
	}
	if c.Download.MaxWait <= 0 {
		return fmt.Errorf("download max wait must be positive, got %s", c.Download.MaxWait)
	}

	if c.Assembly.MinBursts < 1 {
		return fmt.Errorf("minimum bursts must be at least 1, got %d", c.Assembly.MinBursts)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got %q", c.Logging.Format)
	}

	return nil
}
