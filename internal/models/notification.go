// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a notification task.
type TaskStatus string

const (
	// TaskPending means the task awaits dispatch (or a retry attempt).
	TaskPending TaskStatus = "pending"
	// TaskSent means the delivery collaborator acknowledged the dispatch.
	TaskSent TaskStatus = "sent"
	// TaskFailed means delivery failed terminally after bounded retries.
	// Failed tasks remain queryable for observability.
	TaskFailed TaskStatus = "failed"
	// TaskSuppressed means the destination's rate limit rejected the task.
	// Suppressed tasks are terminal; they are never re-queued when the
	// window reopens.
	TaskSuppressed TaskStatus = "suppressed"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskSent, TaskFailed, TaskSuppressed:
		return true
	}
	return false
}

// NotificationTask is one pending or completed instruction to inform a
// destination about a committed event. Retry state is data, not control
// flow: the dispatcher picks up pending tasks whose NextAttemptAt has
// passed.
type NotificationTask struct {
	ID      uuid.UUID `json:"id"`
	EventID uuid.UUID `json:"event_id"`

	GroupID     int64  `json:"group_id"`
	PlayerID    int64  `json:"player_id"`
	Destination string `json:"destination"`

	// Payload is the serialized notification body handed to the delivery
	// collaborator. The core does not specify message formatting; the payload
	// is opaque beyond being valid JSON.
	Payload []byte `json:"payload,omitempty"`

	Status        TaskStatus `json:"status"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LastError     string     `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Terminal reports whether the task has reached a final state.
func (t *NotificationTask) Terminal() bool {
	return t.Status == TaskSent || t.Status == TaskFailed || t.Status == TaskSuppressed
}
