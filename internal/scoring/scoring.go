// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package scoring computes point values for normalized submissions. Rules
// are data, carried in versioned GroupConfig snapshots: base points per
// kind, a points-per-value divisor, per-kind multipliers, and a cap. The
// engine holds no state of its own, so the same (event, config version)
// pair always scores identically, now or years later.
package scoring

import (
	"fmt"
	"math"

	"github.com/lootledger/lootledger/internal/models"
)

// Engine scores submissions against group config snapshots.
type Engine struct{}

// NewEngine creates a scoring engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Score computes the point value of a submission under a config snapshot.
//
//	points = floor((base(kind) + totalValue/divisor) * multiplier(kind))
//
// capped at MaxPointsPerEvent when configured. Integer division truncates,
// matching the long-standing behavior groups tune their divisors around.
func (e *Engine) Score(sub *models.Submission, cfg *models.GroupConfig) (int64, error) {
	if cfg == nil {
		return 0, fmt.Errorf("nil group config")
	}
	if !sub.Kind.Valid() {
		return 0, fmt.Errorf("unknown submission kind %q", sub.Kind)
	}
	return e.compute(sub.Kind, sub.TotalValue(), cfg), nil
}

// Rescore re-evaluates a committed event under an arbitrary config snapshot,
// typically the snapshot active when the event was committed or a candidate
// replacement. The event itself is never mutated.
func (e *Engine) Rescore(event *models.Event, cfg *models.GroupConfig) (int64, error) {
	if cfg == nil {
		return 0, fmt.Errorf("nil group config")
	}
	if !event.Kind.Valid() {
		return 0, fmt.Errorf("unknown event kind %q", event.Kind)
	}
	return e.compute(event.Kind, event.TotalValue, cfg), nil
}

func (e *Engine) compute(kind models.SubmissionKind, totalValue int64, cfg *models.GroupConfig) int64 {
	points := cfg.BasePointsFor(kind)
	if cfg.PointsDivisor > 0 && totalValue > 0 {
		points += totalValue / cfg.PointsDivisor
	}

	if mult := cfg.MultiplierFor(kind); mult != 1.0 {
		points = int64(math.Floor(float64(points) * mult))
	}

	if points < 0 {
		points = 0
	}
	if cfg.MaxPointsPerEvent > 0 && points > cfg.MaxPointsPerEvent {
		points = cfg.MaxPointsPerEvent
	}
	return points
}
