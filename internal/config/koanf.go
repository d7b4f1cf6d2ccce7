// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lootledger/config.yaml",
	"/etc/lootledger/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8180,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/lootledger.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Ingest: IngestConfig{
			Workers:           8,
			QueueSize:         1024,
			SubmissionTimeout: 10 * time.Second,
			MaxQuantity:       65535,
			MaxValue:          2147483647, // max cash stack
			ClockSkew:         5 * time.Minute,
			AutoRegister:      true,
		},
		Dedupe: DedupeConfig{
			Retention:     24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Scoring: ScoringConfig{
			PointsDivisor:     100,
			MaxPointsPerEvent: 0,
		},
		Notify: NotifyConfig{
			Dispatchers:       4,
			DispatchTimeout:   15 * time.Second,
			MaxAttempts:       5,
			BackoffBase:       2 * time.Second,
			BackoffMax:        5 * time.Minute,
			PollInterval:      5 * time.Second,
			DefaultRateLimit:  10,
			DefaultRateWindow: time.Minute,
		},
		Lootboard: LootboardConfig{
			StorePath:       "/data/lootboards",
			RenderTimeout:   30 * time.Second,
			RefreshInterval: 0, // lazy regeneration by default
			TopN:            32,
		},
		Security: SecurityConfig{
			WebhookSecret:    "",
			JWTSecret:        "",
			AuthMode:         "none",
			AdminUsername:    "",
			AdminPassword:    "",
			TokenTTL:         24 * time.Hour,
			CORSOrigins:      []string{"*"},
			RateLimitWebhook: 600,
			RateLimitAPI:     300,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file, and
// environment variables, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority).
	// SERVER_PORT -> server.port, NOTIFY_MAX_ATTEMPTS -> notify.max_attempts
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// configSections are the top-level keys environment variables map onto.
var configSections = []string{
	"server", "database", "logging", "ingest", "dedupe",
	"scoring", "notify", "lootboard", "security",
}

// envTransformFunc maps environment variable names to koanf paths. The first
// underscore-delimited token selects the section; the remainder is the key:
// INGEST_SUBMISSION_TIMEOUT -> ingest.submission_timeout. Variables outside
// the known sections are ignored.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	// LOG_LEVEL / LOG_FORMAT / LOG_CALLER are accepted as shorthand.
	switch key {
	case "log_level":
		return "logging.level"
	case "log_format":
		return "logging.format"
	case "log_caller":
		return "logging.caller"
	}

	for _, section := range configSections {
		prefix := section + "_"
		if strings.HasPrefix(key, prefix) {
			return section + "." + strings.TrimPrefix(key, prefix)
		}
	}
	return "" // not a config variable
}

// sliceConfigPaths are the keys parsed as comma-separated slices when they
// arrive as env-var strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. YAML-provided slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("unexpected type %T for %s", val, path)
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
