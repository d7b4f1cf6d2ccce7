// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/database"
)

// ListPlayers returns registered players, newest first. Archived players
// are excluded unless include_archived=true.
func (h *Handlers) ListPlayers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	limit, offset := pagination(r)
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	players, err := h.db.ListPlayers(r.Context(), includeArchived, limit, offset)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(players)
}

// GetPlayer returns one player by id.
func (h *Handlers) GetPlayer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "playerID")
	if !ok {
		rw.BadRequest("invalid player id")
		return
	}

	player, err := h.db.GetPlayer(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("player not found")
		return
	}
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(player)
}

// ListPlayerEvents returns a player's committed events, newest first.
func (h *Handlers) ListPlayerEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "playerID")
	if !ok {
		rw.BadRequest("invalid player id")
		return
	}
	limit, offset := pagination(r)

	events, err := h.db.ListPlayerEvents(r.Context(), id, limit, offset)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(events)
}

// ListPlayerGroups returns the ids of groups the player belongs to.
func (h *Handlers) ListPlayerGroups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "playerID")
	if !ok {
		rw.BadRequest("invalid player id")
		return
	}

	groupIDs, err := h.db.GroupsForPlayer(r.Context(), id)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(map[string]interface{}{"group_ids": groupIDs})
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

// SetPlayerArchived soft-archives or restores a player. Archived players
// keep their history; only new submissions are refused.
func (h *Handlers) SetPlayerArchived(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "playerID")
	if !ok {
		rw.BadRequest("invalid player id")
		return
	}

	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("body is not valid JSON")
		return
	}

	if err := h.db.SetPlayerArchived(r.Context(), id, req.Archived); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("player not found")
			return
		}
		rw.InternalError(err)
		return
	}
	rw.NoContent()
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenamePlayer sets a player's display name. The pipeline also records
// renames automatically when a known account hash arrives with a new name;
// this endpoint covers manual corrections.
func (h *Handlers) RenamePlayer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "playerID")
	if !ok {
		rw.BadRequest("invalid player id")
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("body is not valid JSON")
		return
	}
	if req.Name == "" || len(req.Name) > 12 {
		rw.ValidationFailed("invalid name", map[string]string{
			"name": "must be 1-12 characters",
		})
		return
	}

	if err := h.db.RenamePlayer(r.Context(), id, req.Name); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("player not found")
			return
		}
		rw.InternalError(err)
		return
	}
	rw.NoContent()
}
