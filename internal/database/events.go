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

	"github.com/google/uuid"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const eventColumns = `id, fingerprint, kind, player_id, source, item_id, item_name,
	quantity, value, total_value, kill_count, points, config_version,
	occurred_at, received_at, part`

// CommitEvent makes an event durable in a single transaction: the event row,
// its group links, the player running totals, every affected leaderboard
// aggregate, the board version bumps, and the idempotency flip all land
// together or not at all. A failure anywhere rolls the whole commit back, so
// no partial aggregate can ever be observed.
//
// periods are the aggregation windows the event's occurred_at falls into,
// resolved by the caller.
func (db *DB) CommitEvent(ctx context.Context, event *models.Event, periods []models.Period, keyRetention time.Duration) error {
	start := time.Now()
	err := db.commitEvent(ctx, event, periods, keyRetention)
	metrics.ObserveDBQuery("commit", "events", start, err)
	if err != nil && !errors.Is(err, ErrDuplicateFingerprint) {
		metrics.CommitRollbacks.Inc()
		logging.Ctx(ctx).Error().Err(err).
			Str("fingerprint", event.Fingerprint).
			Msg("Event commit rolled back")
	}
	return err
}

func (db *DB) commitEvent(ctx context.Context, event *models.Event, periods []models.Period, keyRetention time.Duration) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID.String(), event.Fingerprint, string(event.Kind), event.PlayerID,
		event.Source, event.ItemID, event.ItemName, event.Quantity, event.Value,
		event.TotalValue, killCountValue(event.KillCount), event.Points,
		event.ConfigVersion, event.OccurredAt.UTC(), event.ReceivedAt.UTC(),
		event.Partition)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateFingerprint
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	for _, groupID := range event.GroupIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO event_groups (event_id, group_id) VALUES (?, ?)`,
			event.ID.String(), groupID)
		if err != nil {
			return fmt.Errorf("failed to link event to group %d: %w", groupID, err)
		}
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE players SET
			total_value = total_value + ?,
			total_points = total_points + ?,
			event_count = event_count + 1,
			last_event_at = ?,
			updated_at = ?
		 WHERE id = ?`,
		event.TotalValue, event.Points, event.OccurredAt.UTC(), now, event.PlayerID)
	if err != nil {
		return fmt.Errorf("failed to update player totals: %w", err)
	}

	for _, groupID := range event.GroupIDs {
		for _, period := range periods {
			if err := upsertLeaderboardTx(ctx, tx, groupID, event, period, now); err != nil {
				return err
			}
			if err := bumpBoardVersionTx(ctx, tx, groupID, period, now); err != nil {
				return err
			}
		}
	}

	if err := markFingerprintCommittedTx(ctx, tx, event.Fingerprint, keyRetention); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}
	return nil
}

// upsertLeaderboardTx folds the event into one (group, player, period)
// aggregate. The increment happens in the database, not read-modify-write in
// Go, so concurrent commits cannot lose updates.
func upsertLeaderboardTx(ctx context.Context, tx execContexter, groupID int64, event *models.Event, period models.Period, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO leaderboard_entries
			(group_id, player_id, period_kind, period_key, points, total_value, event_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		 ON CONFLICT (group_id, player_id, period_kind, period_key) DO UPDATE SET
			points = leaderboard_entries.points + excluded.points,
			total_value = leaderboard_entries.total_value + excluded.total_value,
			event_count = leaderboard_entries.event_count + 1,
			updated_at = excluded.updated_at`,
		groupID, event.PlayerID, string(period.Kind), period.Key,
		event.Points, event.TotalValue, now)
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry %s: %w", period, err)
	}
	return nil
}

func bumpBoardVersionTx(ctx context.Context, tx execContexter, groupID int64, period models.Period, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO board_versions (group_id, period_kind, period_key, version, updated_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT (group_id, period_kind, period_key) DO UPDATE SET
			version = board_versions.version + 1,
			updated_at = excluded.updated_at`,
		groupID, string(period.Kind), period.Key, now)
	if err != nil {
		return fmt.Errorf("failed to bump board version %s: %w", period, err)
	}
	return nil
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid event id %q: %w", s, err)
	}
	return id, nil
}

func killCountValue(kc *int64) int64 {
	if kc == nil {
		return 0
	}
	return *kc
}

// GetEvent fetches a committed event by id.
func (db *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	metrics.ObserveDBQuery("select", "events", start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	return event, nil
}

// ListPlayerEvents returns a player's committed events ordered by
// occurred_at, newest first.
func (db *DB) ListPlayerEvents(ctx context.Context, playerID int64, limit, offset int) ([]*models.Event, error) {
	return db.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE player_id = ?
		 ORDER BY occurred_at DESC LIMIT ? OFFSET ?`,
		playerID, limit, offset)
}

// ListGroupEvents returns a group's committed events ordered by occurred_at,
// newest first.
func (db *DB) ListGroupEvents(ctx context.Context, groupID int64, limit, offset int) ([]*models.Event, error) {
	return db.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events e
		 JOIN event_groups eg ON eg.event_id = e.id
		 WHERE eg.group_id = ?
		 ORDER BY e.occurred_at DESC LIMIT ? OFFSET ?`,
		groupID, limit, offset)
}

// ListPartitionEvents returns all events in a YYYYMM partition, oldest
// first. Used by reconciliation to recompute aggregates from raw history.
func (db *DB) ListPartitionEvents(ctx context.Context, partition int) ([]*models.Event, error) {
	return db.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE part = ? ORDER BY occurred_at`,
		partition)
}

func (db *DB) listEvents(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveDBQuery("select", "events", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var e models.Event
	var id, kind string
	var killCount int64
	err := row.Scan(&id, &e.Fingerprint, &kind, &e.PlayerID, &e.Source,
		&e.ItemID, &e.ItemName, &e.Quantity, &e.Value, &e.TotalValue,
		&killCount, &e.Points, &e.ConfigVersion, &e.OccurredAt, &e.ReceivedAt,
		&e.Partition)
	if err != nil {
		return nil, err
	}
	e.ID, err = parseUUID(id)
	if err != nil {
		return nil, err
	}
	e.Kind = models.SubmissionKind(kind)
	if killCount > 0 {
		e.KillCount = &killCount
	}
	return &e, nil
}
