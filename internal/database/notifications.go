// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

const taskColumns = `id, event_id, group_id, player_id, destination, payload,
	status, attempts, max_attempts, next_attempt_at, last_error,
	created_at, updated_at, processed_at`

// InsertTasks persists a batch of notification tasks. Enqueueing is durable:
// a pending task survives restarts and is picked up by whichever dispatcher
// polls first.
func (db *DB) InsertTasks(ctx context.Context, tasks []*models.NotificationTask) error {
	if len(tasks) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, task := range tasks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO notification_tasks (`+taskColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			task.ID.String(), task.EventID.String(), task.GroupID, task.PlayerID,
			task.Destination, string(task.Payload), string(task.Status),
			task.Attempts, task.MaxAttempts, task.NextAttemptAt.UTC(),
			task.LastError, task.CreatedAt.UTC(), task.UpdatedAt.UTC())
		if err != nil {
			metrics.ObserveDBQuery("insert", "notification_tasks", start, err)
			return fmt.Errorf("failed to insert notification task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveDBQuery("insert", "notification_tasks", start, err)
		return fmt.Errorf("failed to commit notification tasks: %w", err)
	}
	metrics.ObserveDBQuery("insert", "notification_tasks", start, nil)
	return nil
}

// DueTasks returns pending tasks whose next attempt time has passed, oldest
// first.
func (db *DB) DueTasks(ctx context.Context, limit int) ([]*models.NotificationTask, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM notification_tasks
		 WHERE status = ? AND next_attempt_at <= ?
		 ORDER BY next_attempt_at LIMIT ?`,
		string(models.TaskPending), time.Now().UTC(), limit)
	metrics.ObserveDBQuery("select", "notification_tasks", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTasks(rows)
}

// MarkTaskSent records a successful dispatch.
func (db *DB) MarkTaskSent(ctx context.Context, id string, attempts int) error {
	return db.finishTask(ctx, id, models.TaskSent, attempts, "")
}

// MarkTaskFailed records terminal delivery failure after bounded retries.
func (db *DB) MarkTaskFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return db.finishTask(ctx, id, models.TaskFailed, attempts, lastError)
}

// MarkTaskSuppressed records a rate-limit suppression. Suppression is
// terminal: the task is never re-queued when the window reopens.
func (db *DB) MarkTaskSuppressed(ctx context.Context, id string) error {
	return db.finishTask(ctx, id, models.TaskSuppressed, 0, "rate limited")
}

func (db *DB) finishTask(ctx context.Context, id string, status models.TaskStatus, attempts int, lastError string) error {
	start := time.Now()
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notification_tasks SET
			status = ?, attempts = ?, last_error = ?, updated_at = ?, processed_at = ?
		 WHERE id = ?`,
		string(status), attempts, lastError, now, now, id)
	metrics.ObserveDBQuery("update", "notification_tasks", start, err)
	if err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	metrics.NotificationTasks.WithLabelValues(string(status)).Inc()
	return requireRowAffected(res)
}

// RescheduleTask pushes a pending task's next attempt into the future after
// a transient delivery failure.
func (db *DB) RescheduleTask(ctx context.Context, id string, attempts int, nextAttempt time.Time, lastError string) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notification_tasks SET
			attempts = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		attempts, nextAttempt.UTC(), lastError, time.Now().UTC(), id,
		string(models.TaskPending))
	metrics.ObserveDBQuery("update", "notification_tasks", start, err)
	if err != nil {
		return fmt.Errorf("failed to reschedule task: %w", err)
	}
	metrics.NotificationRetries.Inc()
	return requireRowAffected(res)
}

// ListTasks returns tasks filtered by status, newest first. An empty status
// lists everything.
func (db *DB) ListTasks(ctx context.Context, status models.TaskStatus, limit, offset int) ([]*models.NotificationTask, error) {
	start := time.Now()
	query := `SELECT ` + taskColumns + ` FROM notification_tasks`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveDBQuery("select", "notification_tasks", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTasks(rows)
}

// CountTasksByStatus returns task counts keyed by status, for the health
// endpoint and operator dashboards.
func (db *DB) CountTasksByStatus(ctx context.Context) (map[models.TaskStatus]int64, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM notification_tasks GROUP BY status`)
	metrics.ObserveDBQuery("select", "notification_tasks", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.TaskStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[models.TaskStatus(status)] = count
	}
	return counts, rows.Err()
}

func scanTasks(rows *sql.Rows) ([]*models.NotificationTask, error) {
	var tasks []*models.NotificationTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*models.NotificationTask, error) {
	var t models.NotificationTask
	var id, eventID, status, payload string
	var processedAt sql.NullTime
	err := row.Scan(&id, &eventID, &t.GroupID, &t.PlayerID, &t.Destination,
		&payload, &status, &t.Attempts, &t.MaxAttempts, &t.NextAttemptAt,
		&t.LastError, &t.CreatedAt, &t.UpdatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	if t.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if t.EventID, err = parseUUID(eventID); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.Payload = []byte(payload)
	if processedAt.Valid {
		ts := processedAt.Time
		t.ProcessedAt = &ts
	}
	return &t, nil
}
