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

// TopEntries returns the leaderboard for (group, period), ranked by points.
// Ranks are standard competition ranking (tied scores share a rank) and are
// computed at read time; write paths never maintain order.
func (db *DB) TopEntries(ctx context.Context, groupID int64, period models.Period, limit int) ([]*models.LeaderboardEntry, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT l.group_id, l.player_id, p.name, l.points, l.total_value,
			l.event_count, l.updated_at,
			RANK() OVER (ORDER BY l.points DESC) AS rnk
		 FROM leaderboard_entries l
		 JOIN players p ON p.id = l.player_id
		 WHERE l.group_id = ? AND l.period_kind = ? AND l.period_key = ?
			AND NOT p.archived
		 ORDER BY rnk, p.name
		 LIMIT ?`,
		groupID, string(period.Kind), period.Key, limit)
	metrics.ObserveDBQuery("select", "leaderboard_entries", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.GroupID, &e.PlayerID, &e.PlayerName, &e.Total,
			&e.TotalValue, &e.EventCount, &e.UpdatedAt, &e.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.Period = period.String()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// PlayerEntry returns a single player's aggregate for (group, period),
// including their rank within the board.
func (db *DB) PlayerEntry(ctx context.Context, groupID, playerID int64, period models.Period) (*models.LeaderboardEntry, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT group_id, player_id, name, points, total_value, event_count, updated_at, rnk
		 FROM (
			SELECT l.group_id, l.player_id, p.name, l.points, l.total_value,
				l.event_count, l.updated_at,
				RANK() OVER (ORDER BY l.points DESC) AS rnk
			FROM leaderboard_entries l
			JOIN players p ON p.id = l.player_id
			WHERE l.group_id = ? AND l.period_kind = ? AND l.period_key = ?
				AND NOT p.archived
		 ) WHERE player_id = ?`,
		groupID, string(period.Kind), period.Key, playerID)

	var e models.LeaderboardEntry
	err := row.Scan(&e.GroupID, &e.PlayerID, &e.PlayerName, &e.Total,
		&e.TotalValue, &e.EventCount, &e.UpdatedAt, &e.Rank)
	metrics.ObserveDBQuery("select", "leaderboard_entries", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query player entry: %w", err)
	}
	e.Period = period.String()
	return &e, nil
}

// BoardVersion returns the monotonic version for (group, period). A board
// that has never received an event is at version zero.
func (db *DB) BoardVersion(ctx context.Context, groupID int64, period models.Period) (int64, error) {
	start := time.Now()
	var version int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT version FROM board_versions
		 WHERE group_id = ? AND period_kind = ? AND period_key = ?`,
		groupID, string(period.Kind), period.Key).Scan(&version)
	metrics.ObserveDBQuery("select", "board_versions", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query board version: %w", err)
	}
	return version, nil
}

// SumEventPoints recomputes the points total for (group, player) over a time
// range directly from the events table. Reconciliation compares this against
// the stored aggregate; any divergence means an invariant was broken.
func (db *DB) SumEventPoints(ctx context.Context, groupID, playerID int64, from, to time.Time) (int64, int64, int64, error) {
	start := time.Now()
	var points, totalValue, count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(e.points), 0), COALESCE(SUM(e.total_value), 0), COUNT(*)
		 FROM events e
		 JOIN event_groups eg ON eg.event_id = e.id
		 WHERE eg.group_id = ? AND e.player_id = ?
			AND e.occurred_at >= ? AND e.occurred_at < ?`,
		groupID, playerID, from.UTC(), to.UTC()).Scan(&points, &totalValue, &count)
	metrics.ObserveDBQuery("select", "events", start, err)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to sum event points: %w", err)
	}
	return points, totalValue, count, nil
}

// ResetLeaderboardEntry overwrites one aggregate with recomputed values.
// Only reconciliation calls this; the ingest path never writes absolutes.
func (db *DB) ResetLeaderboardEntry(ctx context.Context, groupID, playerID int64, period models.Period, points, totalValue, eventCount int64) error {
	start := time.Now()
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO leaderboard_entries
			(group_id, player_id, period_kind, period_key, points, total_value, event_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (group_id, player_id, period_kind, period_key) DO UPDATE SET
			points = excluded.points,
			total_value = excluded.total_value,
			event_count = excluded.event_count,
			updated_at = excluded.updated_at`,
		groupID, playerID, string(period.Kind), period.Key,
		points, totalValue, eventCount, now)
	metrics.ObserveDBQuery("update", "leaderboard_entries", start, err)
	if err != nil {
		return fmt.Errorf("failed to reset leaderboard entry: %w", err)
	}
	return nil
}
