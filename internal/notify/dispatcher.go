// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package notify

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

// DispatcherConfig tunes the dispatch loop.
type DispatcherConfig struct {
	// Workers is the number of concurrent delivery goroutines per poll.
	Workers int
	// PollInterval is how often pending tasks are fetched.
	PollInterval time.Duration
	// DispatchTimeout bounds one delivery attempt, independent of the
	// originating submission's timeout.
	DispatchTimeout time.Duration
	// BackoffBase and BackoffMax bound the exponential retry schedule.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// BatchSize caps tasks fetched per poll.
	BatchSize int
}

// Dispatcher consumes pending notification tasks and drives them to a
// terminal state. It runs as a supervised service; multiple instances may
// share the store.
type Dispatcher struct {
	store     TaskStore
	deliverer Deliverer
	cfg       DispatcherConfig
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store TaskStore, deliverer Deliverer, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Dispatcher{store: store, deliverer: deliverer, cfg: cfg}
}

func (d *Dispatcher) String() string { return "notification-dispatcher" }

// Serve polls for due tasks until the context is canceled.
func (d *Dispatcher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchDue(ctx); err != nil && ctx.Err() == nil {
				logging.Error().Err(err).Msg("Dispatch cycle failed")
			}
		}
	}
}

// DispatchDue processes one batch of due tasks. Exposed for tests and for
// draining during shutdown.
func (d *Dispatcher) DispatchDue(ctx context.Context) error {
	tasks, err := d.store.DueTasks(ctx, d.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	sem := make(chan struct{}, d.cfg.Workers)
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sem <- struct{}{}:
		}
		go func(task *models.NotificationTask) {
			defer func() { <-sem }()
			d.dispatch(ctx, task)
		}(task)
	}
	for i := 0; i < d.cfg.Workers; i++ {
		sem <- struct{}{}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, task *models.NotificationTask) {
	attempt := task.Attempts + 1
	start := time.Now()

	dctx := ctx
	if d.cfg.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, d.cfg.DispatchTimeout)
		defer cancel()
	}

	err := d.deliverer.Deliver(dctx, task.Destination, task.Payload)
	metrics.NotificationDispatchDuration.Observe(time.Since(start).Seconds())

	id := task.ID.String()
	switch {
	case err == nil:
		if mErr := d.store.MarkTaskSent(ctx, id, attempt); mErr != nil {
			logging.Error().Err(mErr).Str("task_id", id).Msg("Failed to record sent task")
		}

	case attempt >= task.MaxAttempts || !IsTransientDelivery(err):
		// Terminal failures are recorded, surfaced through the task API and
		// metrics, never dropped silently.
		logging.Warn().Err(err).
			Str("task_id", id).
			Int("attempts", attempt).
			Msg("Notification delivery failed terminally")
		if mErr := d.store.MarkTaskFailed(ctx, id, attempt, err.Error()); mErr != nil {
			logging.Error().Err(mErr).Str("task_id", id).Msg("Failed to record failed task")
		}

	default:
		next := time.Now().UTC().Add(d.backoff(attempt))
		if mErr := d.store.RescheduleTask(ctx, id, attempt, next, err.Error()); mErr != nil {
			logging.Error().Err(mErr).Str("task_id", id).Msg("Failed to reschedule task")
		}
	}
}

// backoff returns the delay before the given attempt number retries,
// exponential with full jitter.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	base, maxDelay := d.cfg.BackoffBase, d.cfg.BackoffMax
	if base <= 0 {
		base = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Minute
	}

	delay := base
	for i := 1; i < attempt && delay < maxDelay; i++ {
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	jittered := time.Duration(rand.Int64N(int64(delay)) + int64(delay)/2)
	if jittered > maxDelay {
		jittered = maxDelay
	}
	return jittered
}
