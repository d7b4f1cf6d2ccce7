// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/lootledger/lootledger/internal/models"
)

func TestValidateStruct_RawSubmission(t *testing.T) {
	valid := models.RawSubmission{
		Type:         "drop",
		Player:       "zezima",
		AccountHash:  "abc123",
		Source:       "Zulrah",
		ItemID:       12922,
		ItemName:     "Tanzanite fang",
		Quantity:     1,
		Value:        2500000,
		SubmissionID: "c1f8e2a0",
		OccurredAt:   time.Now(),
	}

	if err := ValidateStruct(&valid); err != nil {
		t.Fatalf("expected valid submission to pass, got %v", err)
	}
}

func TestValidateStruct_MissingFields(t *testing.T) {
	sub := models.RawSubmission{}
	err := ValidateStruct(&sub)
	if err == nil {
		t.Fatal("expected validation error for empty submission")
	}

	// required fields should all be reported
	fields := make(map[string]bool)
	for _, fe := range err.Fields() {
		fields[fe.Field] = true
	}
	for _, want := range []string{"Type", "Player", "AccountHash", "Source", "SubmissionID"} {
		if !fields[want] {
			t.Errorf("expected field %s in validation errors, got %v", want, fields)
		}
	}
}

func TestValidateStruct_BoundsMessages(t *testing.T) {
	sub := models.RawSubmission{
		Type:         "drop",
		Player:       "this-name-is-way-too-long",
		AccountHash:  "abc",
		Source:       "Zulrah",
		Quantity:     -1,
		SubmissionID: "x",
		OccurredAt:   time.Now(),
	}
	err := ValidateStruct(&sub)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Player must be at most 12 characters") {
		t.Errorf("expected string max message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "Quantity must be at least 0") {
		t.Errorf("expected numeric min message, got %q", err.Error())
	}
}

func TestValidateStruct_Destination(t *testing.T) {
	dest := models.Destination{
		ID:        "general",
		URL:       "not a url",
		RateLimit: 0,
	}
	err := ValidateStruct(&dest)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "URL must be a valid URL") {
		t.Errorf("expected url message, got %q", err.Error())
	}
}
