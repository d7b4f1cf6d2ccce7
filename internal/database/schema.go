// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaTimeout bounds schema creation at startup.
const schemaTimeout = 60 * time.Second

// initialize creates sequences, tables, and indexes idempotently.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	for _, query := range schemaStatements() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// schemaStatements returns the DDL executed at startup. Every statement is
// idempotent so restarts are safe. The events.part column holds the YYYYMM
// month partition of occurred_at; "partition" itself is a reserved word.
func schemaStatements() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_player_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_group_id START 1`,

		`CREATE TABLE IF NOT EXISTS players (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_player_id'),
			account_hash VARCHAR NOT NULL UNIQUE,
			name VARCHAR NOT NULL,
			total_value BIGINT NOT NULL DEFAULT 0,
			total_points BIGINT NOT NULL DEFAULT 0,
			event_count BIGINT NOT NULL DEFAULT 0,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_event_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS groups (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_group_id'),
			name VARCHAR NOT NULL UNIQUE,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id BIGINT NOT NULL,
			player_id BIGINT NOT NULL,
			joined_at TIMESTAMP NOT NULL,
			PRIMARY KEY (group_id, player_id)
		)`,

		// Group configuration is versioned and append-only. Events record
		// the config version they were scored under so historical scores
		// stay explainable after a config change.
		`CREATE TABLE IF NOT EXISTS group_configs (
			group_id BIGINT NOT NULL,
			version BIGINT NOT NULL,
			config VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (group_id, version)
		)`,

		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			fingerprint VARCHAR PRIMARY KEY,
			state VARCHAR NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id VARCHAR PRIMARY KEY,
			fingerprint VARCHAR NOT NULL UNIQUE,
			kind VARCHAR NOT NULL,
			player_id BIGINT NOT NULL,
			source VARCHAR NOT NULL,
			item_id INTEGER NOT NULL,
			item_name VARCHAR NOT NULL,
			quantity BIGINT NOT NULL,
			value BIGINT NOT NULL,
			total_value BIGINT NOT NULL,
			kill_count BIGINT NOT NULL,
			points BIGINT NOT NULL,
			config_version BIGINT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			received_at TIMESTAMP NOT NULL,
			part INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS event_groups (
			event_id VARCHAR NOT NULL,
			group_id BIGINT NOT NULL,
			PRIMARY KEY (event_id, group_id)
		)`,

		`CREATE TABLE IF NOT EXISTS leaderboard_entries (
			group_id BIGINT NOT NULL,
			player_id BIGINT NOT NULL,
			period_kind VARCHAR NOT NULL,
			period_key VARCHAR NOT NULL,
			points BIGINT NOT NULL DEFAULT 0,
			total_value BIGINT NOT NULL DEFAULT 0,
			event_count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (group_id, player_id, period_kind, period_key)
		)`,

		// Monotonic per-board version, bumped inside the commit transaction.
		// Artifact staleness checks compare against this.
		`CREATE TABLE IF NOT EXISTS board_versions (
			group_id BIGINT NOT NULL,
			period_kind VARCHAR NOT NULL,
			period_key VARCHAR NOT NULL,
			version BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (group_id, period_kind, period_key)
		)`,

		`CREATE TABLE IF NOT EXISTS notification_tasks (
			id VARCHAR PRIMARY KEY,
			event_id VARCHAR NOT NULL,
			group_id BIGINT NOT NULL,
			player_id BIGINT NOT NULL,
			destination VARCHAR NOT NULL,
			payload VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL,
			next_attempt_at TIMESTAMP NOT NULL,
			last_error VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_player ON events (player_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_part ON events (part)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON notification_tasks (status, next_attempt_at)`,
		`CREATE INDEX IF NOT EXISTS idx_idempotency_expiry ON idempotency_keys (expires_at)`,
	}
}
