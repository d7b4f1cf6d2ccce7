// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package models

import "time"

// Player is a game account observed by the tracker. Players are created on
// first event (when group policy allows auto-registration) and soft-archived
// on unlink, never hard-deleted.
type Player struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	AccountHash string     `json:"account_hash"`
	TotalValue  int64      `json:"total_value"`
	TotalPoints int64      `json:"total_points"`
	EventCount  int64      `json:"event_count"`
	Archived    bool       `json:"archived"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
}

// Group is a named collection of players sharing leaderboards and
// notification destinations.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupMember is the explicit join entity between players and groups.
// Memberships reference integer ids in both directions rather than holding
// object references, so there is no ownership cycle between Player and Group.
type GroupMember struct {
	GroupID  int64     `json:"group_id"`
	PlayerID int64     `json:"player_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Destination is one notification target owned by a group: typically a
// Discord channel webhook. Each destination filters events independently and
// carries its own rate limit.
type Destination struct {
	// ID is unique within the owning group's config.
	ID string `json:"id" validate:"required,max=64"`

	// URL is the delivery endpoint handed to the delivery collaborator.
	URL string `json:"url" validate:"required,url"`

	// MinValue suppresses events below this total value. Zero means the
	// group-level MinValueToNotify applies.
	MinValue int64 `json:"min_value,omitempty" validate:"min=0"`

	// Kinds restricts delivery to the listed submission kinds. Empty means
	// all kinds.
	Kinds []SubmissionKind `json:"kinds,omitempty"`

	// RateLimit is the number of dispatches allowed per RateWindow.
	RateLimit int `json:"rate_limit" validate:"min=1"`

	// RateWindow is the token-bucket refill window.
	RateWindow time.Duration `json:"rate_window"`
}

// Accepts reports whether the destination's kind filter admits k.
func (d *Destination) Accepts(k SubmissionKind) bool {
	if len(d.Kinds) == 0 {
		return true
	}
	for _, kind := range d.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// GroupConfig is a versioned, immutable snapshot of a group's scoring and
// notification configuration. The pipeline always works from an explicit
// snapshot so historical rescoring stays deterministic: the same
// (event, config version) pair always yields the same points.
type GroupConfig struct {
	GroupID int64 `json:"group_id"`
	Version int64 `json:"version"`

	// PointsDivisor converts total value to points for drops:
	// points = total_value / PointsDivisor. Zero disables value scoring.
	PointsDivisor int64 `json:"points_divisor" validate:"min=0"`

	// BasePoints awards a flat amount per submission kind, applied before
	// multipliers. Kinds without an entry award zero base points.
	BasePoints map[SubmissionKind]int64 `json:"base_points,omitempty"`

	// Multipliers scale the summed points per kind, e.g. event-week boosts.
	// Kinds without an entry use 1.0.
	Multipliers map[SubmissionKind]float64 `json:"multipliers,omitempty"`

	// MaxPointsPerEvent caps the final value. Zero means uncapped.
	MaxPointsPerEvent int64 `json:"max_points_per_event,omitempty" validate:"min=0"`

	// MinValueToNotify is the default notification threshold for the group's
	// destinations.
	MinValueToNotify int64 `json:"min_value_to_notify" validate:"min=0"`

	// SendStacks also notifies when quantity*value clears the threshold even
	// though the unit value does not.
	SendStacks bool `json:"send_stacks"`

	// AutoRegister creates unseen players on first event. When false,
	// submissions from unknown accounts are rejected.
	AutoRegister bool `json:"auto_register"`

	// VerifyAboveValue routes drops above this total value through the
	// item/source verifier before commit. Zero disables verification.
	VerifyAboveValue int64 `json:"verify_above_value,omitempty" validate:"min=0"`

	Destinations []Destination `json:"destinations,omitempty" validate:"dive"`

	CreatedAt time.Time `json:"created_at"`
}

// MultiplierFor returns the configured multiplier for a kind, defaulting
// to 1.0.
func (c *GroupConfig) MultiplierFor(k SubmissionKind) float64 {
	if c.Multipliers == nil {
		return 1.0
	}
	if m, ok := c.Multipliers[k]; ok && m > 0 {
		return m
	}
	return 1.0
}

// BasePointsFor returns the configured base points for a kind.
func (c *GroupConfig) BasePointsFor(k SubmissionKind) int64 {
	if c.BasePoints == nil {
		return 0
	}
	return c.BasePoints[k]
}
