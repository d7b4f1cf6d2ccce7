// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Server.Port != 8180 {
		t.Errorf("expected default port 8180, got %d", cfg.Server.Port)
	}
	if cfg.Ingest.Workers != 8 {
		t.Errorf("expected default workers 8, got %d", cfg.Ingest.Workers)
	}
	if cfg.Scoring.PointsDivisor != 100 {
		t.Errorf("expected default points divisor 100, got %d", cfg.Scoring.PointsDivisor)
	}
	if cfg.Dedupe.Retention != 24*time.Hour {
		t.Errorf("expected default dedupe retention 24h, got %v", cfg.Dedupe.Retention)
	}
	if cfg.Security.AuthMode != "none" {
		t.Errorf("expected default auth mode none, got %q", cfg.Security.AuthMode)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("INGEST_WORKERS", "2")
	t.Setenv("NOTIFY_MAX_ATTEMPTS", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999 from env, got %d", cfg.Server.Port)
	}
	if cfg.Ingest.Workers != 2 {
		t.Errorf("expected workers 2 from env, got %d", cfg.Ingest.Workers)
	}
	if cfg.Notify.MaxAttempts != 7 {
		t.Errorf("expected max attempts 7 from env, got %d", cfg.Notify.MaxAttempts)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug from env, got %q", cfg.Logging.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := strings.Join([]string{
		"server:",
		"  port: 8282",
		"database:",
		"  path: /tmp/test.duckdb",
		"security:",
		"  cors_origins:",
		"    - https://example.com",
		"ingest:",
		"  drop_table:",
		"    Vorkath:",
		"      - 21907",
		"      - 22006",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 8282 {
		t.Errorf("expected port 8282 from file, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("expected db path from file, got %q", cfg.Database.Path)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "https://example.com" {
		t.Errorf("expected cors origins from file, got %v", cfg.Security.CORSOrigins)
	}
	items := cfg.Ingest.DropTable["Vorkath"]
	if len(items) != 2 || items[0] != 21907 {
		t.Errorf("expected Vorkath drop table from file, got %v", cfg.Ingest.DropTable)
	}
}

func TestLoad_EnvCommaSeparatedSlice(t *testing.T) {
	t.Setenv("SECURITY_CORS_ORIGINS", "https://a.test, https://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Fatalf("expected 2 cors origins, got %v", cfg.Security.CORSOrigins)
	}
	if cfg.Security.CORSOrigins[1] != "https://b.test" {
		t.Errorf("expected trimmed origin, got %q", cfg.Security.CORSOrigins[1])
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }},
		{"zero timeout", func(c *Config) { c.Ingest.SubmissionTimeout = 0 }},
		{"zero retention", func(c *Config) { c.Dedupe.Retention = 0 }},
		{"zero attempts", func(c *Config) { c.Notify.MaxAttempts = 0 }},
		{"zero rate limit", func(c *Config) { c.Notify.DefaultRateLimit = 0 }},
		{"zero rate window", func(c *Config) { c.Notify.DefaultRateWindow = 0 }},
		{"bad auth mode", func(c *Config) { c.Security.AuthMode = "oauth" }},
		{"jwt without secret", func(c *Config) { c.Security.AuthMode = "jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"INGEST_SUBMISSION_TIMEOUT", "ingest.submission_timeout"},
		{"NOTIFY_DEFAULT_RATE_LIMIT", "notify.default_rate_limit"},
		{"LOG_LEVEL", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
