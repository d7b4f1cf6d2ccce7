// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/leaderboard"
	"github.com/lootledger/lootledger/internal/models"
)

// requestPeriod resolves the {kind} URL parameter plus the optional ?key=
// query parameter into a period. A missing key means the current period.
func requestPeriod(r *http.Request) (models.Period, error) {
	kind := chi.URLParam(r, "kind")
	if key := r.URL.Query().Get("key"); key != "" {
		return leaderboard.ParsePeriod(kind, key)
	}
	return leaderboard.CurrentPeriod(models.PeriodKind(kind), time.Now().UTC())
}

type leaderboardResponse struct {
	GroupID int64                      `json:"group_id"`
	Period  models.Period              `json:"period"`
	Version int64                      `json:"version"`
	Entries []*models.LeaderboardEntry `json:"entries"`
}

// GetLeaderboard returns the top entries of one board with its version.
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	groupID, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}
	period, err := requestPeriod(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	limit, _ := pagination(r)

	entries, err := h.boards.Top(r.Context(), groupID, period, limit)
	if err != nil {
		rw.InternalError(err)
		return
	}
	version, err := h.boards.Version(r.Context(), groupID, period)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(&leaderboardResponse{
		GroupID: groupID,
		Period:  period,
		Version: version,
		Entries: entries,
	})
}

// GetPlayerRank returns one player's entry and rank on a board.
func (h *Handlers) GetPlayerRank(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	groupID, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}
	playerID, ok := urlParamInt64(r, "playerID")
	if !ok {
		rw.BadRequest("invalid player id")
		return
	}
	period, err := requestPeriod(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	entry, err := h.boards.PlayerRank(r.Context(), groupID, playerID, period)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("player has no entry on this board")
		return
	}
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(entry)
}

// ReconcileLeaderboard recomputes one board's entries from the event log
// and reports any rows the incremental path had drifted on. Divergences
// are repaired as a side effect.
func (h *Handlers) ReconcileLeaderboard(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	groupID, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}
	period, err := requestPeriod(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	divergences, err := h.boards.Reconcile(r.Context(), groupID, period)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(map[string]interface{}{
		"group_id":    groupID,
		"period":      period,
		"divergences": divergences,
	})
}

// GetEvent returns one committed event by id.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "eventID")
	if id == "" {
		rw.BadRequest("invalid event id")
		return
	}

	event, err := h.db.GetEvent(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("event not found")
		return
	}
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(event)
}
