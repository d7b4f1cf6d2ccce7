// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package models defines the data structures shared across the Lootledger
// pipeline: raw webhook submissions, normalized events, players, groups,
// leaderboard entries, notification tasks, and API responses.
package models

import "time"

// SubmissionKind is the closed set of event kinds accepted at the webhook
// boundary. Unknown kinds are rejected during normalization rather than
// carried through the pipeline as opaque strings.
type SubmissionKind string

const (
	// KindDrop is an item drop from an NPC or activity.
	KindDrop SubmissionKind = "drop"
	// KindCollectionLog is a new collection-log entry.
	KindCollectionLog SubmissionKind = "collection_log"
	// KindCombatAchievement is a completed combat achievement task.
	KindCombatAchievement SubmissionKind = "combat_achievement"
	// KindPersonalBest is a new personal-best kill time.
	KindPersonalBest SubmissionKind = "personal_best"
	// KindPet is a pet drop.
	KindPet SubmissionKind = "pet"
)

// Valid reports whether k is a member of the closed submission-kind set.
func (k SubmissionKind) Valid() bool {
	switch k {
	case KindDrop, KindCollectionLog, KindCombatAchievement, KindPersonalBest, KindPet:
		return true
	}
	return false
}

// String returns the wire representation of the kind.
func (k SubmissionKind) String() string { return string(k) }

// AllKinds lists every accepted submission kind. Used by config validation
// and kind filters.
func AllKinds() []SubmissionKind {
	return []SubmissionKind{
		KindDrop, KindCollectionLog, KindCombatAchievement, KindPersonalBest, KindPet,
	}
}

// RawSubmission is the wire payload accepted by POST /api/v1/webhook/submit.
//
// Clients are game-client plugins submitting on a retry loop, so the payload
// carries a client-generated SubmissionID and the true occurrence timestamp;
// both participate in the dedupe fingerprint. Validation tags are enforced by
// the validation package before normalization runs.
type RawSubmission struct {
	// Type is the submission kind (drop, collection_log, combat_achievement,
	// personal_best, pet).
	Type string `json:"type" validate:"required,max=32"`

	// Player is the game account handle.
	Player string `json:"player_name" validate:"required,min=1,max=12"`

	// AccountHash is the stable identifier for the game account, independent
	// of display-name changes.
	AccountHash string `json:"acc_hash" validate:"required,max=64"`

	// Source names the NPC, boss, or activity the event came from.
	Source string `json:"source" validate:"required,max=128"`

	// ItemID identifies the dropped item or unlocked entry, when applicable.
	ItemID int64 `json:"item_id,omitempty" validate:"min=0"`

	// ItemName is the display name of the item or entry.
	ItemName string `json:"item_name,omitempty" validate:"max=128"`

	// Quantity is the stack size. Defaults to 1 during normalization.
	Quantity int64 `json:"quantity" validate:"min=0"`

	// Value is the unit value of the item in coins.
	Value int64 `json:"value" validate:"min=0"`

	// KillCount is the kill count at the time of the event, when reported.
	KillCount *int64 `json:"kill_count,omitempty"`

	// SubmissionID is the client-generated id for this submission. Retries of
	// the same event reuse the same id.
	SubmissionID string `json:"submission_id" validate:"required,max=64"`

	// OccurredAt is the client-observed event timestamp (RFC3339).
	OccurredAt time.Time `json:"timestamp" validate:"required"`
}

// Submission is a validated, normalized payload ready for scoring and commit.
// It is produced by the normalizer and is the only shape the rest of the
// pipeline sees.
type Submission struct {
	Kind        SubmissionKind
	Fingerprint string

	PlayerID    int64
	PlayerName  string
	AccountHash string

	// GroupIDs are the groups the resolved player is a member of at
	// normalization time. Leaderboard deltas and fanout apply per group.
	GroupIDs []int64

	Source    string
	ItemID    int64
	ItemName  string
	Quantity  int64
	Value     int64 // unit value, clamped
	KillCount *int64

	SubmissionID string
	OccurredAt   time.Time
	ReceivedAt   time.Time
}

// TotalValue is the stack value of the submission.
func (s *Submission) TotalValue() int64 {
	return s.Value * s.Quantity
}
