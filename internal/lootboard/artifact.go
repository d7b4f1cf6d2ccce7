// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package lootboard owns the rendered leaderboard artifacts. Every commit
// bumps the board version for the (group, period) pairs it touched; this
// package compares cached artifact versions against the authoritative one,
// serves stale artifacts while a single-flight regeneration runs, and
// persists rendered bytes in BadgerDB so boards survive restarts.
package lootboard

import (
	"errors"
	"strconv"
	"time"

	"github.com/lootledger/lootledger/internal/models"
)

// ErrNotReady is returned when no artifact has ever been generated for the
// requested board. Callers translate it to a retry-shortly response;
// readers never block on a first render.
var ErrNotReady = errors.New("lootboard not yet generated")

// Artifact is one rendered board. Bytes are opaque to the pipeline; only
// Version participates in staleness decisions.
type Artifact struct {
	GroupID     int64     `json:"group_id"`
	Period      string    `json:"period"`
	Version     int64     `json:"version"`
	ContentType string    `json:"content_type"`
	Bytes       []byte    `json:"bytes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// BoardData is the input handed to a renderer: the ranked entries of one
// board as of a known version.
type BoardData struct {
	GroupID   int64
	GroupName string
	Period    models.Period
	Version   int64
	Entries   []*models.LeaderboardEntry
}

// key renders the artifact store key for a board.
func key(groupID int64, period models.Period) string {
	return "board:" + strconv.FormatInt(groupID, 10) + ":" + period.String()
}
