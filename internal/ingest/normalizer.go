// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package ingest runs the submission pipeline: normalize, dedupe, score,
// commit, then hand the committed event to the async consumers. The
// pipeline is the only writer of events; everything downstream of the
// commit is read-only with respect to submissions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/dedupe"
	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/models"
	"github.com/lootledger/lootledger/internal/validation"
)

// Machine-readable rejection reason codes returned to clients.
const (
	ReasonInvalidPayload  = "invalid_payload"
	ReasonUnknownKind     = "unknown_kind"
	ReasonUnknownAccount  = "unknown_account"
	ReasonArchivedAccount = "archived_account"
	ReasonStaleTimestamp  = "stale_timestamp"
	ReasonUnverifiedDrop  = "unverified_drop"
)

// RejectionError is a terminal validation failure carrying a machine
// readable reason code. It never leaves side effects behind.
type RejectionError struct {
	Reason  string
	Message string
}

func (e *RejectionError) Error() string {
	return e.Reason + ": " + e.Message
}

func reject(reason, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Normalizer turns raw webhook payloads into validated submissions. Pure
// transformation plus lookups; it never scores and never writes events.
type Normalizer struct {
	db  *database.DB
	cfg *config.IngestConfig
}

// NewNormalizer creates a normalizer.
func NewNormalizer(db *database.DB, cfg *config.IngestConfig) *Normalizer {
	return &Normalizer{db: db, cfg: cfg}
}

// Normalize validates and canonicalizes a raw submission. Player records
// are created for unseen accounts when auto-registration is on; that is the
// normalizer's only permitted write.
func (n *Normalizer) Normalize(ctx context.Context, raw *models.RawSubmission) (*models.Submission, error) {
	if err := validation.ValidateStruct(raw); err != nil {
		return nil, reject(ReasonInvalidPayload, "%s", err.Error())
	}

	kind := models.SubmissionKind(raw.Type)
	if !kind.Valid() {
		return nil, reject(ReasonUnknownKind, "unknown submission kind %q", raw.Type)
	}

	now := time.Now().UTC()
	occurredAt := raw.OccurredAt.UTC()
	if occurredAt.After(now.Add(n.cfg.ClockSkew)) {
		return nil, reject(ReasonStaleTimestamp,
			"timestamp %s is further than %s in the future", occurredAt, n.cfg.ClockSkew)
	}

	quantity := raw.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	if n.cfg.MaxQuantity > 0 && quantity > n.cfg.MaxQuantity {
		quantity = n.cfg.MaxQuantity
	}
	value := raw.Value
	if n.cfg.MaxValue > 0 && value > n.cfg.MaxValue {
		value = n.cfg.MaxValue
	}

	player, err := n.resolvePlayer(ctx, raw)
	if err != nil {
		return nil, err
	}

	groupIDs, err := n.db.GroupsForPlayer(ctx, player.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve memberships: %w", err)
	}

	return &models.Submission{
		Kind:         kind,
		Fingerprint:  dedupe.Fingerprint(raw),
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		AccountHash:  raw.AccountHash,
		GroupIDs:     groupIDs,
		Source:       raw.Source,
		ItemID:       raw.ItemID,
		ItemName:     raw.ItemName,
		Quantity:     quantity,
		Value:        value,
		KillCount:    raw.KillCount,
		SubmissionID: raw.SubmissionID,
		OccurredAt:   occurredAt,
		ReceivedAt:   now,
	}, nil
}

func (n *Normalizer) resolvePlayer(ctx context.Context, raw *models.RawSubmission) (*models.Player, error) {
	player, err := n.db.GetPlayerByAccountHash(ctx, raw.AccountHash)
	switch {
	case err == nil:
		if player.Archived {
			return nil, reject(ReasonArchivedAccount, "account is archived")
		}
		if player.Name != raw.Player {
			// In-game name change observed on a fresh submission.
			if err := n.db.RenamePlayer(ctx, player.ID, raw.Player); err != nil {
				logging.Ctx(ctx).Warn().Err(err).
					Int64("player_id", player.ID).
					Msg("Failed to record player rename")
			} else {
				player.Name = raw.Player
			}
		}
		return player, nil

	case errors.Is(err, database.ErrNotFound):
		if !n.cfg.AutoRegister {
			return nil, reject(ReasonUnknownAccount, "account not registered")
		}
		player, err = n.db.CreatePlayer(ctx, raw.AccountHash, raw.Player)
		if err != nil {
			return nil, fmt.Errorf("failed to auto-register player: %w", err)
		}
		logging.Ctx(ctx).Info().
			Int64("player_id", player.ID).
			Str("player", raw.Player).
			Msg("Auto-registered player on first event")
		return player, nil

	default:
		return nil, fmt.Errorf("failed to resolve player: %w", err)
	}
}
