// Package config loads kvstore configuration from an optional YAML defaults
// file overlaid by process environment variables, with environment always
// taking precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the full configuration surface for the store and its HTTP
// adapter. StoreCapacity, LogFile, CompactionInterval, MaxLogSize, and
// CleanupInterval form the core's configuration surface (spec §6); the rest
// is the ambient surface every adapter in this shape carries (§7a).
type Config struct {
	// Ambient
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	ConfigFile  string `envconfig:"CONFIG_FILE"`
	CORSOrigins string `envconfig:"CORS_ORIGINS"`

	// Core — layered: hardcoded default, then YAML file, then env var.
	// These intentionally carry no `default` tag: envconfig.Process applies
	// a default tag unconditionally whenever its env var is unset, which
	// would stomp a value just loaded from YAML. Load() seeds the
	// yaml.v3-unmarshaled struct before invoking envconfig.Process, so a
	// bare field here means "inherit whatever YAML (or the hardcoded
	// fallback) already set."
	StoreCapacity      int           `envconfig:"STORE_CAPACITY" yaml:"store_capacity"`
	LogFile            string        `envconfig:"LOG_FILE" yaml:"log_file"`
	CompactionInterval time.Duration `envconfig:"COMPACTION_INTERVAL" yaml:"compaction_interval"`
	MaxLogSize         int           `envconfig:"MAX_LOG_SIZE" yaml:"max_log_size"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" yaml:"cleanup_interval"`
}

// defaults returns the hardcoded fallback values from spec §6's
// configuration surface, applied before the YAML layer.
func defaults() Config {
	return Config{
		Environment:        "development",
		LogLevel:           "info",
		HTTPAddr:           ":8080",
		StoreCapacity:      100,
		LogFile:            "data/wal.log",
		CompactionInterval: 300 * time.Second,
		MaxLogSize:         1000,
		CleanupInterval:    60 * time.Second,
	}
}

// CORSOriginList returns the parsed list of allowed CORS origins, or nil if
// CORS is not configured.
func (c *Config) CORSOriginList() []string {
	if c.CORSOrigins == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(c.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Load reads configuration in three layers: hardcoded defaults, an optional
// YAML file named by CONFIG_FILE (checked via a first-pass, env-only parse
// so CONFIG_FILE itself can be set via the environment), and finally process
// environment variables, which win over both.
func Load() (*Config, error) {
	cfg := defaults()

	var probe struct {
		ConfigFile string `envconfig:"CONFIG_FILE"`
	}
	if err := envconfig.Process("", &probe); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if probe.ConfigFile != "" {
		if err := loadYAMLFile(probe.ConfigFile, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", probe.ConfigFile, err)
		}
		cfg.ConfigFile = probe.ConfigFile
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
