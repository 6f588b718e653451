// Package config defines process configuration and its loading.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	StoreDriver string `koanf:"store_driver" validate:"oneof=sqlite memory"`
	DBPath      string `koanf:"db_path" validate:"required_if=StoreDriver sqlite"`

	// SnapshotDir is the root of the per-source snapshot files.
	SnapshotDir string `koanf:"snapshot_dir" validate:"required"`

	// FixturePath points at a local JSON fixture; empty uses the bundled one.
	FixturePath string `koanf:"fixture_path"`

	UpstreamEndpoint string `koanf:"upstream_endpoint" validate:"required,url"`
	APIKeyEnv        string `koanf:"api_key_env" validate:"required"`
	EnvFile          string `koanf:"env_file"`
	FetchTimeoutMS   int    `koanf:"fetch_timeout_ms" validate:"gt=0"`
	FetchMaxTries    int    `koanf:"fetch_max_tries" validate:"gte=1,lte=10"`

	// MaxAgeHours is the default staleness budget for recommendations.
	MaxAgeHours float64 `koanf:"max_age_hours" validate:"gte=0"`

	// RefreshIntervalMS runs the freshness check in the background while
	// serving. Zero disables it.
	RefreshIntervalMS int `koanf:"refresh_interval_ms" validate:"gte=0"`

	DefaultTopK   int    `koanf:"default_topk" validate:"gte=1,ltefield=MaxTopK"`
	MaxTopK       int    `koanf:"max_topk" validate:"gte=1"`
	MissingPolicy string `koanf:"missing_policy" validate:"oneof=neutral penalize"`
}

// New returns a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		StoreDriver:      "sqlite",
		DBPath:           "data/warehouse.db",
		SnapshotDir:      "data/bronze",
		UpstreamEndpoint: "https://artificialanalysis.ai/api/v2/data/llms/models",
		APIKeyEnv:        "AA_API_KEY",
		EnvFile:          ".env",
		FetchTimeoutMS:   30_000,
		FetchMaxTries:    3,
		MaxAgeHours:      24,
		DefaultTopK:      5,
		MaxTopK:          20,
		MissingPolicy:    "penalize",
	}
}

// RefreshInterval returns RefreshIntervalMS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}
