// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package models

import (
	"testing"
	"time"
)

func TestSubmissionKind_Valid(t *testing.T) {
	for _, k := range AllKinds() {
		if !k.Valid() {
			t.Errorf("expected kind %q to be valid", k)
		}
	}

	invalid := []SubmissionKind{"", "quest_completion", "level_up", "DROP"}
	for _, k := range invalid {
		if k.Valid() {
			t.Errorf("expected kind %q to be invalid", k)
		}
	}
}

func TestPartitionOf(t *testing.T) {
	tests := []struct {
		in   time.Time
		want int
	}{
		{time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC), 202608},
		{time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 202601},
		{time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC), 202512},
	}
	for _, tt := range tests {
		if got := PartitionOf(tt.in); got != tt.want {
			t.Errorf("PartitionOf(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPartitionOf_UsesUTC(t *testing.T) {
	// 2026-01-01 03:00 +1100 is still 2025-12-31 in UTC.
	loc := time.FixedZone("AEDT", 11*3600)
	in := time.Date(2026, time.January, 1, 3, 0, 0, 0, loc)
	if got := PartitionOf(in); got != 202512 {
		t.Errorf("PartitionOf(%v) = %d, want 202512", in, got)
	}
}

func TestDestination_Accepts(t *testing.T) {
	all := Destination{ID: "a"}
	if !all.Accepts(KindDrop) || !all.Accepts(KindPet) {
		t.Error("destination with no kind filter should accept all kinds")
	}

	dropsOnly := Destination{ID: "b", Kinds: []SubmissionKind{KindDrop}}
	if !dropsOnly.Accepts(KindDrop) {
		t.Error("expected drop to be accepted")
	}
	if dropsOnly.Accepts(KindCollectionLog) {
		t.Error("expected collection_log to be filtered")
	}
}

func TestGroupConfig_Defaults(t *testing.T) {
	cfg := GroupConfig{}
	if m := cfg.MultiplierFor(KindDrop); m != 1.0 {
		t.Errorf("expected default multiplier 1.0, got %f", m)
	}
	if b := cfg.BasePointsFor(KindPet); b != 0 {
		t.Errorf("expected default base points 0, got %d", b)
	}

	cfg.Multipliers = map[SubmissionKind]float64{KindDrop: 2.0}
	cfg.BasePoints = map[SubmissionKind]int64{KindPet: 500}
	if m := cfg.MultiplierFor(KindDrop); m != 2.0 {
		t.Errorf("expected multiplier 2.0, got %f", m)
	}
	if b := cfg.BasePointsFor(KindPet); b != 500 {
		t.Errorf("expected base points 500, got %d", b)
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskPending, false},
		{TaskSent, true},
		{TaskFailed, true},
		{TaskSuppressed, true},
	}
	for _, tt := range tests {
		task := NotificationTask{Status: tt.status}
		if got := task.Terminal(); got != tt.terminal {
			t.Errorf("Terminal() for %q = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestPeriod_String(t *testing.T) {
	p := Period{Kind: PeriodMonthly, Key: "202608"}
	if got := p.String(); got != "monthly/202608" {
		t.Errorf("Period.String() = %q, want monthly/202608", got)
	}
}

func TestSubmission_TotalValue(t *testing.T) {
	s := Submission{Value: 1000, Quantity: 3}
	if got := s.TotalValue(); got != 3000 {
		t.Errorf("TotalValue() = %d, want 3000", got)
	}
}
