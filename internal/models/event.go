// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is the immutable record of a single observed drop, achievement, or
// collection-log entry. Exactly one Event exists per unique fingerprint; the
// row is never mutated after commit.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Fingerprint string         `json:"fingerprint"`
	Kind        SubmissionKind `json:"kind"`

	PlayerID   int64  `json:"player_id"`
	PlayerName string `json:"player_name"`

	// GroupIDs are the groups the event contributed to. Derived from the
	// player's memberships at commit time; not authoritative afterwards.
	GroupIDs []int64 `json:"group_ids,omitempty"`

	Source     string `json:"source"`
	ItemID     int64  `json:"item_id,omitempty"`
	ItemName   string `json:"item_name,omitempty"`
	Quantity   int64  `json:"quantity"`
	Value      int64  `json:"value"`
	TotalValue int64  `json:"total_value"`
	KillCount  *int64 `json:"kill_count,omitempty"`

	// Points is the value computed by the scoring engine under ConfigVersion.
	// Historical rescoring re-evaluates rules against the stored fields and
	// never mutates the event itself.
	Points        int64 `json:"points"`
	ConfigVersion int64 `json:"config_version"`

	// OccurredAt is the client-observed timestamp; Partition is its YYYYMM
	// bucket. Aggregation always follows OccurredAt, never arrival order.
	OccurredAt time.Time `json:"occurred_at"`
	ReceivedAt time.Time `json:"received_at"`
	Partition  int       `json:"partition"`
}

// PartitionOf returns the YYYYMM partition identifier for a timestamp,
// e.g. 202608 for August 2026.
func PartitionOf(t time.Time) int {
	return t.UTC().Year()*100 + int(t.UTC().Month())
}

// PeriodKind enumerates the leaderboard aggregation windows.
type PeriodKind string

const (
	PeriodDaily   PeriodKind = "daily"
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
	PeriodAllTime PeriodKind = "alltime"
)

// Valid reports whether k names a known period kind.
func (k PeriodKind) Valid() bool {
	switch k {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

// Period identifies one bounded aggregation window: a kind plus the concrete
// key for a point in time (e.g. monthly/202608, daily/2026-08-30,
// weekly/2026-W35, alltime/all).
type Period struct {
	Kind PeriodKind `json:"kind"`
	Key  string     `json:"key"`
}

// String renders the period as kind/key, the form used in cache keys and
// artifact store keys.
func (p Period) String() string {
	return string(p.Kind) + "/" + p.Key
}

// LeaderboardEntry is the running aggregate for (group, player, period).
// Total equals the sum of Points over all committed events for the tuple;
// Rank is computed lazily at read time and is zero on write paths.
type LeaderboardEntry struct {
	GroupID    int64     `json:"group_id"`
	PlayerID   int64     `json:"player_id"`
	PlayerName string    `json:"player_name,omitempty"`
	Period     string    `json:"period"`
	Total      int64     `json:"total"`
	TotalValue int64     `json:"total_value"`
	EventCount int64     `json:"event_count"`
	Rank       int       `json:"rank,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
