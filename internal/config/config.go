// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package config defines the Lootledger configuration model and its loader.
//
// Configuration is loaded via Koanf v2 with layered sources, highest priority
// last:
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (SERVER_PORT, DATABASE_PATH, INGEST_WORKERS, ...)
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Lootledger server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logging   LoggingConfig   `koanf:"logging"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Dedupe    DedupeConfig    `koanf:"dedupe"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Notify    NotifyConfig    `koanf:"notify"`
	Lootboard LootboardConfig `koanf:"lootboard"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file path. Use :memory: for tests.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	// Workers is the size of the submission worker pool.
	Workers int `koanf:"workers"`

	// QueueSize bounds the pending-submission channel. Submissions beyond
	// the bound receive a retryable response instead of queueing unbounded.
	QueueSize int `koanf:"queue_size"`

	// SubmissionTimeout is the end-to-end budget for one submission:
	// normalize, dedupe, score, commit.
	SubmissionTimeout time.Duration `koanf:"submission_timeout"`

	// MaxQuantity and MaxValue clamp submitted fields to sane bounds.
	MaxQuantity int64 `koanf:"max_quantity"`
	MaxValue    int64 `koanf:"max_value"`

	// ClockSkew is how far in the future an event timestamp may lie before
	// the submission is rejected.
	ClockSkew time.Duration `koanf:"clock_skew"`

	// AutoRegister creates player records for unseen account hashes on
	// their first event. When false, unknown accounts are rejected.
	AutoRegister bool `koanf:"auto_register"`

	// DropTable maps a source to the item ids it can legitimately drop.
	// Drops above a group's verify_above_value threshold are checked
	// against this table; an empty table disables verification.
	DropTable map[string][]int64 `koanf:"drop_table"`
}

// DedupeConfig configures the idempotency store.
type DedupeConfig struct {
	// Retention is how long processed fingerprints are remembered. Must
	// exceed the longest client retry interval.
	Retention time.Duration `koanf:"retention"`

	// SweepInterval is how often expired fingerprints are purged.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// ScoringConfig carries group-independent scoring defaults, used when a group
// has no explicit configuration rows.
type ScoringConfig struct {
	// PointsDivisor converts total value to points (points = value/divisor).
	PointsDivisor int64 `koanf:"points_divisor"`

	// MaxPointsPerEvent caps a single event's points. 0 = uncapped.
	MaxPointsPerEvent int64 `koanf:"max_points_per_event"`
}

// NotifyConfig configures notification fanout and dispatch.
type NotifyConfig struct {
	// Dispatchers is the number of concurrent dispatch workers.
	Dispatchers int `koanf:"dispatchers"`

	// DispatchTimeout bounds one delivery attempt, independent of the
	// originating submission's timeout.
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`

	// MaxAttempts bounds delivery retries before a task is marked failed.
	MaxAttempts int `koanf:"max_attempts"`

	// BackoffBase and BackoffMax shape the exponential retry backoff.
	BackoffBase time.Duration `koanf:"backoff_base"`
	BackoffMax  time.Duration `koanf:"backoff_max"`

	// PollInterval is how often the dispatcher scans for due pending tasks.
	PollInterval time.Duration `koanf:"poll_interval"`

	// DefaultRateLimit / DefaultRateWindow apply to destinations that do not
	// set their own token-bucket parameters.
	DefaultRateLimit  int           `koanf:"default_rate_limit"`
	DefaultRateWindow time.Duration `koanf:"default_rate_window"`
}

// LootboardConfig configures artifact caching and regeneration.
type LootboardConfig struct {
	// StorePath is the BadgerDB directory holding rendered artifacts.
	StorePath string `koanf:"store_path"`

	// RenderTimeout bounds one regeneration.
	RenderTimeout time.Duration `koanf:"render_timeout"`

	// RefreshInterval drives the background refresher that regenerates
	// stale boards ahead of reads. 0 disables background refresh (lazy
	// regeneration on read only).
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// TopN is how many recent events feed one board.
	TopN int `koanf:"top_n"`
}

// SecurityConfig configures webhook and API authentication.
type SecurityConfig struct {
	// WebhookSecret signs inbound submissions (HMAC-SHA256 over the raw
	// body, hex-encoded in X-Lootledger-Signature). Empty disables
	// signature checks; a warning is logged at startup.
	WebhookSecret string `koanf:"webhook_secret"`

	// JWTSecret signs admin API tokens. Required unless AuthMode is none.
	JWTSecret string `koanf:"jwt_secret"`

	// AuthMode selects admin API auth: "jwt" or "none".
	AuthMode string `koanf:"auth_mode"`

	// AdminUsername / AdminPassword authenticate the login endpoint that
	// issues admin tokens. The password is bcrypt-compared, never logged.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// TokenTTL is the admin token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// CORSOrigins lists allowed origins for the read API.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitWebhook / RateLimitAPI are requests-per-minute limits applied
	// per client IP.
	RateLimitWebhook int `koanf:"rate_limit_webhook"`
	RateLimitAPI     int `koanf:"rate_limit_api"`
}

// Validate checks cross-field constraints after loading.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be >= 1, got %d", c.Ingest.Workers)
	}
	if c.Ingest.SubmissionTimeout <= 0 {
		return fmt.Errorf("ingest.submission_timeout must be positive")
	}
	if c.Dedupe.Retention <= 0 {
		return fmt.Errorf("dedupe.retention must be positive")
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("notify.max_attempts must be >= 1, got %d", c.Notify.MaxAttempts)
	}
	if c.Notify.DefaultRateLimit < 1 {
		return fmt.Errorf("notify.default_rate_limit must be >= 1, got %d", c.Notify.DefaultRateLimit)
	}
	if c.Notify.DefaultRateWindow <= 0 {
		return fmt.Errorf("notify.default_rate_window must be positive")
	}
	if c.Scoring.PointsDivisor < 0 {
		return fmt.Errorf("scoring.points_divisor must not be negative")
	}
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters when auth_mode is jwt")
		}
	case "none":
	default:
		return fmt.Errorf("security.auth_mode must be jwt or none, got %q", c.Security.AuthMode)
	}
	return nil
}
