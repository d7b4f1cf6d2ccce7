// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package scoring

import (
	"testing"

	"github.com/lootledger/lootledger/internal/models"
)

func drop(value, quantity int64) *models.Submission {
	return &models.Submission{
		Kind:     models.KindDrop,
		Source:   "Vorkath",
		ItemID:   22006,
		Quantity: quantity,
		Value:    value,
	}
}

func TestScoreValueDivisor(t *testing.T) {
	engine := NewEngine()
	cfg := &models.GroupConfig{PointsDivisor: 100}

	tests := []struct {
		name     string
		value    int64
		quantity int64
		want     int64
	}{
		{"one point per 100 value", 1000, 1, 10},
		{"truncating division", 199, 1, 1},
		{"below divisor scores zero", 99, 1, 0},
		{"stack multiplies value", 1000, 3, 30},
		{"zero value", 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Score(drop(tt.value, tt.quantity), cfg)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d points, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreBasePointsAndMultipliers(t *testing.T) {
	engine := NewEngine()
	cfg := &models.GroupConfig{
		PointsDivisor: 100,
		BasePoints: map[models.SubmissionKind]int64{
			models.KindPet:               500,
			models.KindCombatAchievement: 25,
		},
		Multipliers: map[models.SubmissionKind]float64{
			models.KindDrop: 2.0,
			models.KindPet:  1.5,
		},
	}

	// A pet has no value; its score is base * multiplier.
	pet := &models.Submission{Kind: models.KindPet, Quantity: 1}
	got, err := engine.Score(pet, cfg)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 750 {
		t.Errorf("pet: got %d, want 750", got)
	}

	// A drop combines value points with its kind multiplier.
	got, err = engine.Score(drop(1000, 1), cfg)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 20 {
		t.Errorf("boosted drop: got %d, want 20", got)
	}

	// Unlisted kinds fall back to base 0, multiplier 1.
	cl := &models.Submission{Kind: models.KindCollectionLog, Quantity: 1}
	got, err = engine.Score(cl, cfg)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 0 {
		t.Errorf("collection log: got %d, want 0", got)
	}
}

func TestScoreFractionalMultiplierFloors(t *testing.T) {
	engine := NewEngine()
	cfg := &models.GroupConfig{
		PointsDivisor: 100,
		Multipliers:   map[models.SubmissionKind]float64{models.KindDrop: 1.5},
	}
	// 3 value points * 1.5 = 4.5, floored to 4.
	got, err := engine.Score(drop(300, 1), cfg)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 4 {
		t.Errorf("got %d, want 4", got)
	}
}

func TestScoreCap(t *testing.T) {
	engine := NewEngine()
	cfg := &models.GroupConfig{PointsDivisor: 100, MaxPointsPerEvent: 1000}

	got, err := engine.Score(drop(2_000_000, 1), cfg)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 1000 {
		t.Errorf("got %d, want cap of 1000", got)
	}
}

func TestScoreZeroDivisorDisablesValuePoints(t *testing.T) {
	engine := NewEngine()
	cfg := &models.GroupConfig{
		BasePoints: map[models.SubmissionKind]int64{models.KindDrop: 5},
	}
	got, err := engine.Score(drop(1_000_000, 1), cfg)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 5 {
		t.Errorf("got %d, want base-only 5", got)
	}
}

func TestScoreRejectsUnknownKind(t *testing.T) {
	engine := NewEngine()
	sub := &models.Submission{Kind: "jackpot", Quantity: 1}
	if _, err := engine.Score(sub, &models.GroupConfig{}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := engine.Score(drop(100, 1), nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestRescoreMatchesOriginalScore(t *testing.T) {
	engine := NewEngine()
	cfg := &models.GroupConfig{Version: 3, PointsDivisor: 50}

	sub := drop(1000, 2)
	points, err := engine.Score(sub, cfg)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	event := &models.Event{
		Kind:          sub.Kind,
		TotalValue:    sub.TotalValue(),
		Points:        points,
		ConfigVersion: cfg.Version,
	}
	rescored, err := engine.Rescore(event, cfg)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if rescored != points {
		t.Errorf("rescore under same config diverged: %d vs %d", rescored, points)
	}

	// A changed divisor yields a different value without touching the event.
	newCfg := &models.GroupConfig{Version: 4, PointsDivisor: 100}
	rescored, err = engine.Rescore(event, newCfg)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if rescored != points/2 {
		t.Errorf("got %d under halved rate, want %d", rescored, points/2)
	}
	if event.Points != points {
		t.Error("rescore mutated the event")
	}
}
