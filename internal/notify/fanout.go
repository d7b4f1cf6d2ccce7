// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package notify decides which destinations hear about a committed event
// and delivers the resulting tasks. Fanout evaluates each destination's
// filters and rate limit and enqueues durable NotificationTask rows; the
// dispatcher consumes pending tasks with bounded retries. Neither side can
// roll back the originating event: by the time fanout runs, the commit is
// history.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

// TaskStore persists notification tasks, implemented by the database layer.
type TaskStore interface {
	InsertTasks(ctx context.Context, tasks []*models.NotificationTask) error
	DueTasks(ctx context.Context, limit int) ([]*models.NotificationTask, error)
	MarkTaskSent(ctx context.Context, id string, attempts int) error
	MarkTaskFailed(ctx context.Context, id string, attempts int, lastError string) error
	MarkTaskSuppressed(ctx context.Context, id string) error
	RescheduleTask(ctx context.Context, id string, attempts int, nextAttempt time.Time, lastError string) error
}

// ConfigSource resolves the current config snapshot for a group.
type ConfigSource interface {
	GetGroupConfig(ctx context.Context, groupID int64) (*models.GroupConfig, error)
}

// Fanout evaluates destinations for committed events and enqueues tasks.
type Fanout struct {
	store       TaskStore
	configs     ConfigSource
	maxAttempts int

	defaultLimit  int
	defaultWindow time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFanout creates a fanout. defaultLimit/defaultWindow apply to
// destinations that do not carry their own rate limit.
func NewFanout(store TaskStore, configs ConfigSource, maxAttempts, defaultLimit int, defaultWindow time.Duration) *Fanout {
	return &Fanout{
		store:         store,
		configs:       configs,
		maxAttempts:   maxAttempts,
		defaultLimit:  defaultLimit,
		defaultWindow: defaultWindow,
		limiters:      make(map[string]*rate.Limiter),
	}
}

// payload is the notification body handed to the delivery collaborator.
// Beyond being valid JSON it is opaque to the pipeline.
type payload struct {
	Kind       models.SubmissionKind `json:"kind"`
	PlayerName string                `json:"player_name"`
	GroupID    int64                 `json:"group_id"`
	Source     string                `json:"source"`
	ItemName   string                `json:"item_name,omitempty"`
	Quantity   int64                 `json:"quantity"`
	TotalValue int64                 `json:"total_value"`
	Points     int64                 `json:"points"`
	KillCount  *int64                `json:"kill_count,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// Process enqueues notification tasks for a committed event across all of
// its groups. Over-limit destinations get a SUPPRESSED task immediately;
// suppression is terminal and is never retried when the window reopens.
// Errors here never affect the committed event.
func (f *Fanout) Process(ctx context.Context, event *models.Event) ([]*models.NotificationTask, error) {
	var tasks []*models.NotificationTask
	now := time.Now().UTC()

	for _, groupID := range event.GroupIDs {
		cfg, err := f.configs.GetGroupConfig(ctx, groupID)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Int64("group_id", groupID).
				Msg("Fanout skipped group with unreadable config")
			continue
		}

		for i := range cfg.Destinations {
			dest := &cfg.Destinations[i]
			if !f.shouldNotify(event, cfg, dest) {
				continue
			}

			task, err := f.buildTask(event, groupID, dest, now)
			if err != nil {
				return nil, err
			}
			if !f.limiter(groupID, dest).Allow() {
				task.Status = models.TaskSuppressed
				task.LastError = "rate limited"
				task.ProcessedAt = &now
			}
			tasks = append(tasks, task)
		}
	}

	if err := f.store.InsertTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("failed to enqueue notification tasks: %w", err)
	}
	for _, task := range tasks {
		metrics.NotificationTasks.WithLabelValues(string(task.Status)).Inc()
	}
	return tasks, nil
}

// shouldNotify applies the destination's kind filter and value threshold.
// Thresholds only gate drops; achievements, pets, and log entries carry no
// meaningful value and always notify.
func (f *Fanout) shouldNotify(event *models.Event, cfg *models.GroupConfig, dest *models.Destination) bool {
	if !dest.Accepts(event.Kind) {
		return false
	}
	if event.Kind != models.KindDrop {
		return true
	}

	minValue := dest.MinValue
	if minValue == 0 {
		minValue = cfg.MinValueToNotify
	}
	if minValue == 0 {
		return true
	}
	if event.Value >= minValue {
		return true
	}
	return cfg.SendStacks && event.TotalValue >= minValue
}

func (f *Fanout) buildTask(event *models.Event, groupID int64, dest *models.Destination, now time.Time) (*models.NotificationTask, error) {
	body, err := json.Marshal(payload{
		Kind:       event.Kind,
		PlayerName: event.PlayerName,
		GroupID:    groupID,
		Source:     event.Source,
		ItemName:   event.ItemName,
		Quantity:   event.Quantity,
		TotalValue: event.TotalValue,
		Points:     event.Points,
		KillCount:  event.KillCount,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification payload: %w", err)
	}

	return &models.NotificationTask{
		ID:            uuid.New(),
		EventID:       event.ID,
		GroupID:       groupID,
		PlayerID:      event.PlayerID,
		Destination:   dest.URL,
		Payload:       body,
		Status:        models.TaskPending,
		MaxAttempts:   f.maxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// limiter returns the token bucket for a destination, creating it on first
// use. Buckets are keyed by (group, destination id) so two groups sharing a
// webhook URL do not starve each other.
func (f *Fanout) limiter(groupID int64, dest *models.Destination) *rate.Limiter {
	key := fmt.Sprintf("%d/%s", groupID, dest.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.limiters[key]; ok {
		return l
	}

	limit, window := dest.RateLimit, dest.RateWindow
	if limit <= 0 {
		limit = f.defaultLimit
	}
	if window <= 0 {
		window = f.defaultWindow
	}
	var l *rate.Limiter
	if limit <= 0 || window <= 0 {
		// No usable limit anywhere; the destination runs unthrottled.
		l = rate.NewLimiter(rate.Inf, 1)
	} else {
		l = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
	}
	f.limiters[key] = l
	return l
}
