// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/dedupe"
	"github.com/lootledger/lootledger/internal/leaderboard"
	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
	"github.com/lootledger/lootledger/internal/scoring"
)

// Publisher receives committed events for async consumption. Publish
// failures never affect the commit.
type Publisher interface {
	PublishEvent(event *models.Event) error
}

// Processor runs one submission through the full pipeline under the
// configured end-to-end timeout.
type Processor struct {
	db         *database.DB
	normalizer *Normalizer
	deduper    *dedupe.Deduper
	engine     *scoring.Engine
	verifier   Verifier
	publisher  Publisher

	submissionTimeout time.Duration
	keyRetention      time.Duration

	// fallback scores events for players outside any group.
	fallback *models.GroupConfig
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(
	db *database.DB,
	normalizer *Normalizer,
	deduper *dedupe.Deduper,
	engine *scoring.Engine,
	verifier Verifier,
	publisher Publisher,
	cfg *config.Config,
) *Processor {
	if verifier == nil {
		verifier = NopVerifier{}
	}
	return &Processor{
		db:                db,
		normalizer:        normalizer,
		deduper:           deduper,
		engine:            engine,
		verifier:          verifier,
		publisher:         publisher,
		submissionTimeout: cfg.Ingest.SubmissionTimeout,
		keyRetention:      cfg.Dedupe.Retention,
		fallback: &models.GroupConfig{
			PointsDivisor:     cfg.Scoring.PointsDivisor,
			MaxPointsPerEvent: cfg.Scoring.MaxPointsPerEvent,
		},
	}
}

// Process runs the pipeline: normalize, reserve, verify, score, commit,
// publish. The reservation is held across the whole commit attempt and
// released only on a terminal outcome; transient failures release it so
// the client's retry is accepted as fresh.
func (p *Processor) Process(ctx context.Context, raw *models.RawSubmission) *models.SubmitResponse {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.submissionTimeout)
	defer cancel()

	resp := p.process(ctx, raw)

	kind := raw.Type
	if !models.SubmissionKind(kind).Valid() {
		kind = "invalid"
	}
	metrics.SubmissionsTotal.WithLabelValues(kind, string(resp.Outcome)).Inc()
	metrics.SubmissionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return resp
}

func (p *Processor) process(ctx context.Context, raw *models.RawSubmission) *models.SubmitResponse {
	sub, err := p.normalizer.Normalize(ctx, raw)
	if err != nil {
		return p.failure(ctx, err)
	}

	outcome, err := p.deduper.CheckAndReserve(ctx, sub.Fingerprint)
	if err != nil {
		return retryLater(err)
	}
	if outcome == dedupe.Duplicate {
		return &models.SubmitResponse{Outcome: models.OutcomeDuplicate}
	}

	resp := p.committed(ctx, sub)
	switch resp.Outcome {
	case models.OutcomeAccepted:
		p.deduper.Confirm(sub.Fingerprint)
	default:
		// Rejections and transient failures both leave no durable event;
		// the fingerprint must not stay poisoned.
		p.deduper.Release(ctx, sub.Fingerprint)
	}
	return resp
}

func (p *Processor) committed(ctx context.Context, sub *models.Submission) *models.SubmitResponse {
	cfg, err := p.groupConfig(ctx, sub)
	if err != nil {
		return retryLater(err)
	}

	if cfg.VerifyAboveValue > 0 && sub.TotalValue() >= cfg.VerifyAboveValue {
		if err := p.verifier.Verify(ctx, sub); err != nil {
			return p.failure(ctx, err)
		}
	}

	points, err := p.engine.Score(sub, cfg)
	if err != nil {
		return p.failure(ctx, err)
	}

	event := &models.Event{
		ID:            uuid.New(),
		Fingerprint:   sub.Fingerprint,
		Kind:          sub.Kind,
		PlayerID:      sub.PlayerID,
		PlayerName:    sub.PlayerName,
		GroupIDs:      sub.GroupIDs,
		Source:        sub.Source,
		ItemID:        sub.ItemID,
		ItemName:      sub.ItemName,
		Quantity:      sub.Quantity,
		Value:         sub.Value,
		TotalValue:    sub.TotalValue(),
		KillCount:     sub.KillCount,
		Points:        points,
		ConfigVersion: cfg.Version,
		OccurredAt:    sub.OccurredAt,
		ReceivedAt:    sub.ReceivedAt,
		Partition:     models.PartitionOf(sub.OccurredAt),
	}

	periods := leaderboard.PeriodsFor(event.OccurredAt)
	if err := p.db.CommitEvent(ctx, event, periods, p.keyRetention); err != nil {
		if errors.Is(err, database.ErrDuplicateFingerprint) {
			// The key was purged but the event row survived; the unique
			// constraint is the backstop.
			return &models.SubmitResponse{Outcome: models.OutcomeDuplicate}
		}
		return retryLater(err)
	}

	if p.publisher != nil {
		if err := p.publisher.PublishEvent(event); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("event_id", event.ID.String()).
				Msg("Failed to publish committed event")
		}
	}

	return &models.SubmitResponse{
		Outcome: models.OutcomeAccepted,
		EventID: &event.ID,
		Points:  points,
	}
}

// groupConfig picks the scoring snapshot for a submission: the first
// membership group's latest config, or the server fallback for players
// outside any group.
func (p *Processor) groupConfig(ctx context.Context, sub *models.Submission) (*models.GroupConfig, error) {
	if len(sub.GroupIDs) == 0 {
		return p.fallback, nil
	}
	return p.db.GetGroupConfig(ctx, sub.GroupIDs[0])
}

func (p *Processor) failure(ctx context.Context, err error) *models.SubmitResponse {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return &models.SubmitResponse{
			Outcome:    models.OutcomeRejected,
			ReasonCode: rej.Reason,
			Message:    rej.Message,
		}
	}
	logging.Ctx(ctx).Error().Err(err).Msg("Submission failed")
	return retryLater(err)
}

func retryLater(err error) *models.SubmitResponse {
	msg := "transient failure, retry with the same submission id"
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		msg = "submission timed out, retry with the same submission id"
	}
	return &models.SubmitResponse{
		Outcome: models.OutcomeRetryLater,
		Message: msg,
	}
}
