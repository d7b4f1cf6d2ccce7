// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

// CreateGroup inserts a new group with an initial config snapshot at
// version 1.
func (db *DB) CreateGroup(ctx context.Context, name string, cfg *models.GroupConfig) (*models.Group, error) {
	start := time.Now()
	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`INSERT INTO groups (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`,
		name, now, now)
	var id int64
	if err := row.Scan(&id); err != nil {
		metrics.ObserveDBQuery("insert", "groups", start, err)
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	cfg.GroupID = id
	cfg.Version = 1
	cfg.CreatedAt = now
	if err := insertConfigTx(ctx, tx, cfg); err != nil {
		metrics.ObserveDBQuery("insert", "groups", start, err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveDBQuery("insert", "groups", start, err)
		return nil, fmt.Errorf("failed to commit group: %w", err)
	}
	metrics.ObserveDBQuery("insert", "groups", start, nil)

	return &models.Group{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// GetGroup fetches a group by id.
func (db *DB) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	start := time.Now()
	var g models.Group
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, archived, created_at, updated_at FROM groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.Archived, &g.CreatedAt, &g.UpdatedAt)
	metrics.ObserveDBQuery("select", "groups", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query group: %w", err)
	}
	return &g, nil
}

// ListGroups returns all non-archived groups.
func (db *DB) ListGroups(ctx context.Context) ([]*models.Group, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, archived, created_at, updated_at FROM groups
		 WHERE NOT archived ORDER BY id`)
	metrics.ObserveDBQuery("select", "groups", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []*models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Archived, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// AddGroupMember links a player to a group. Adding an existing member is a
// no-op.
func (db *DB) AddGroupMember(ctx context.Context, groupID, playerID int64) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO group_members (group_id, player_id, joined_at)
		 VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		groupID, playerID, time.Now().UTC())
	metrics.ObserveDBQuery("insert", "group_members", start, err)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveGroupMember unlinks a player from a group. Committed events and
// leaderboard history are untouched.
func (db *DB) RemoveGroupMember(ctx context.Context, groupID, playerID int64) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND player_id = ?`,
		groupID, playerID)
	metrics.ObserveDBQuery("delete", "group_members", start, err)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return requireRowAffected(res)
}

// GroupsForPlayer returns the ids of all groups the player belongs to.
func (db *DB) GroupsForPlayer(ctx context.Context, playerID int64) ([]int64, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT group_id FROM group_members WHERE player_id = ? ORDER BY group_id`,
		playerID)
	metrics.ObserveDBQuery("select", "group_members", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GroupMemberIDs returns the ids of all players in a group.
func (db *DB) GroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT player_id FROM group_members WHERE group_id = ? ORDER BY player_id`,
		groupID)
	metrics.ObserveDBQuery("select", "group_members", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PutGroupConfig appends a new config snapshot for the group and returns the
// assigned version. Snapshots are append-only; earlier versions stay readable
// so historical events can always be rescored under the config they were
// committed with.
func (db *DB) PutGroupConfig(ctx context.Context, cfg *models.GroupConfig) (int64, error) {
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM group_configs WHERE group_id = ?`, cfg.GroupID).
		Scan(&current)
	if err != nil {
		metrics.ObserveDBQuery("insert", "group_configs", start, err)
		return 0, fmt.Errorf("failed to query config version: %w", err)
	}

	cfg.Version = current.Int64 + 1
	cfg.CreatedAt = time.Now().UTC()
	if err := insertConfigTx(ctx, tx, cfg); err != nil {
		metrics.ObserveDBQuery("insert", "group_configs", start, err)
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveDBQuery("insert", "group_configs", start, err)
		return 0, fmt.Errorf("failed to commit config: %w", err)
	}
	metrics.ObserveDBQuery("insert", "group_configs", start, nil)
	return cfg.Version, nil
}

// GetGroupConfig returns the latest config snapshot for the group.
func (db *DB) GetGroupConfig(ctx context.Context, groupID int64) (*models.GroupConfig, error) {
	return db.getConfig(ctx,
		`SELECT config FROM group_configs WHERE group_id = ?
		 ORDER BY version DESC LIMIT 1`, groupID)
}

// GetGroupConfigVersion returns a specific historical config snapshot.
func (db *DB) GetGroupConfigVersion(ctx context.Context, groupID, version int64) (*models.GroupConfig, error) {
	return db.getConfig(ctx,
		`SELECT config FROM group_configs WHERE group_id = ? AND version = ?`,
		groupID, version)
}

func (db *DB) getConfig(ctx context.Context, query string, args ...any) (*models.GroupConfig, error) {
	start := time.Now()
	var raw string
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(&raw)
	metrics.ObserveDBQuery("select", "group_configs", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query group config: %w", err)
	}

	var cfg models.GroupConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode group config: %w", err)
	}
	return &cfg, nil
}

func insertConfigTx(ctx context.Context, tx *sql.Tx, cfg *models.GroupConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode group config: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_configs (group_id, version, config, created_at)
		 VALUES (?, ?, ?, ?)`,
		cfg.GroupID, cfg.Version, string(raw), cfg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert group config: %w", err)
	}
	return nil
}
