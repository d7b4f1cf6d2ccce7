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

	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

const playerColumns = `id, account_hash, name, total_value, total_points, event_count,
	archived, created_at, updated_at, last_event_at`

// CreatePlayer inserts a new player and returns it with the assigned id.
func (db *DB) CreatePlayer(ctx context.Context, accountHash, name string) (*models.Player, error) {
	start := time.Now()
	now := time.Now().UTC()

	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO players (account_hash, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		accountHash, name, now, now)

	var id int64
	if err := row.Scan(&id); err != nil {
		metrics.ObserveDBQuery("insert", "players", start, err)
		if isUniqueViolation(err) {
			// Lost a race with a concurrent first event; the row exists now.
			return db.GetPlayerByAccountHash(ctx, accountHash)
		}
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	metrics.ObserveDBQuery("insert", "players", start, nil)

	return &models.Player{
		ID:          id,
		AccountHash: accountHash,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetPlayer fetches a player by id.
func (db *DB) GetPlayer(ctx context.Context, id int64) (*models.Player, error) {
	return db.getPlayer(ctx, `WHERE id = ?`, id)
}

// GetPlayerByAccountHash fetches a player by the client account hash.
func (db *DB) GetPlayerByAccountHash(ctx context.Context, accountHash string) (*models.Player, error) {
	return db.getPlayer(ctx, `WHERE account_hash = ?`, accountHash)
}

func (db *DB) getPlayer(ctx context.Context, where string, arg any) (*models.Player, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players `+where, arg)
	p, err := scanPlayer(row)
	metrics.ObserveDBQuery("select", "players", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query player: %w", err)
	}
	return p, nil
}

// RenamePlayer updates the display name, typically after an in-game name
// change detected on a fresh submission.
func (db *DB) RenamePlayer(ctx context.Context, id int64, name string) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE players SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id)
	metrics.ObserveDBQuery("update", "players", start, err)
	if err != nil {
		return fmt.Errorf("failed to rename player: %w", err)
	}
	return requireRowAffected(res)
}

// SetPlayerArchived soft-archives or restores a player. Archived players
// keep their history but new submissions for them are rejected.
func (db *DB) SetPlayerArchived(ctx context.Context, id int64, archived bool) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE players SET archived = ?, updated_at = ? WHERE id = ?`,
		archived, time.Now().UTC(), id)
	metrics.ObserveDBQuery("update", "players", start, err)
	if err != nil {
		return fmt.Errorf("failed to update player archive state: %w", err)
	}
	return requireRowAffected(res)
}

// ListPlayers returns players ordered by total points, highest first.
func (db *DB) ListPlayers(ctx context.Context, includeArchived bool, limit, offset int) ([]*models.Player, error) {
	start := time.Now()
	query := `SELECT ` + playerColumns + ` FROM players`
	if !includeArchived {
		query += ` WHERE NOT archived`
	}
	query += ` ORDER BY total_points DESC, id LIMIT ? OFFSET ?`

	rows, err := db.conn.QueryContext(ctx, query, limit, offset)
	metrics.ObserveDBQuery("select", "players", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var p models.Player
	var lastEvent sql.NullTime
	err := row.Scan(&p.ID, &p.AccountHash, &p.Name, &p.TotalValue, &p.TotalPoints,
		&p.EventCount, &p.Archived, &p.CreatedAt, &p.UpdatedAt, &lastEvent)
	if err != nil {
		return nil, err
	}
	if lastEvent.Valid {
		t := lastEvent.Time
		p.LastEventAt = &t
	}
	return &p, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
