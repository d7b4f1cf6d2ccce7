// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/models"
	"github.com/lootledger/lootledger/internal/validation"
)

type createGroupRequest struct {
	Name   string              `json:"name" validate:"required,max=64"`
	Config *models.GroupConfig `json:"config,omitempty"`
}

// CreateGroup creates a group, optionally with an initial config version.
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("body is not valid JSON")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationFailed("invalid group", validationDetails(verr))
		return
	}
	if req.Config != nil {
		if verr := validation.ValidateStruct(req.Config); verr != nil {
			rw.ValidationFailed("invalid group config", validationDetails(verr))
			return
		}
	}

	group, err := h.db.CreateGroup(r.Context(), req.Name, req.Config)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Created(group)
}

// ListGroups returns all groups.
func (h *Handlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	groups, err := h.db.ListGroups(r.Context())
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(groups)
}

// GetGroup returns one group by id.
func (h *Handlers) GetGroup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}

	group, err := h.db.GetGroup(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("group not found")
		return
	}
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(group)
}

// GetGroupConfig returns the group's latest config snapshot, or a specific
// version when ?version= is given. Snapshots are immutable.
func (h *Handlers) GetGroupConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}

	var (
		cfg *models.GroupConfig
		err error
	)
	if v := r.URL.Query().Get("version"); v != "" {
		version, parseErr := strconv.ParseInt(v, 10, 64)
		if parseErr != nil || version < 1 {
			rw.BadRequest("invalid config version")
			return
		}
		cfg, err = h.db.GetGroupConfigVersion(r.Context(), id, version)
	} else {
		cfg, err = h.db.GetGroupConfig(r.Context(), id)
	}
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("group config not found")
		return
	}
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(cfg)
}

// PutGroupConfig appends a new config version for the group. Existing
// versions are never mutated; events committed under older versions keep
// their scores.
func (h *Handlers) PutGroupConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}

	var cfg models.GroupConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		rw.BadRequest("body is not valid JSON")
		return
	}
	cfg.GroupID = id
	if verr := validation.ValidateStruct(&cfg); verr != nil {
		rw.ValidationFailed("invalid group config", validationDetails(verr))
		return
	}

	if _, err := h.db.GetGroup(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("group not found")
			return
		}
		rw.InternalError(err)
		return
	}

	version, err := h.db.PutGroupConfig(r.Context(), &cfg)
	if err != nil {
		rw.InternalError(err)
		return
	}
	cfg.Version = version
	rw.Created(&cfg)
}

// ListGroupMembers returns the player ids linked to the group.
func (h *Handlers) ListGroupMembers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}

	playerIDs, err := h.db.GroupMemberIDs(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("group not found")
			return
		}
		rw.InternalError(err)
		return
	}
	rw.Success(map[string]interface{}{"player_ids": playerIDs})
}

type addMemberRequest struct {
	PlayerID    int64  `json:"player_id,omitempty"`
	AccountHash string `json:"account_hash,omitempty"`
	Name        string `json:"name,omitempty"`
}

// AddGroupMember links a player to the group. The player can be named by id
// or by account hash; an unseen account hash is registered on the spot when
// the group's config allows auto-registration, and refused otherwise.
func (h *Handlers) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	groupID, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("body is not valid JSON")
		return
	}

	player, err := h.resolveMember(r, groupID, &req)
	if err != nil {
		switch {
		case errors.Is(err, errBadMemberRequest):
			rw.BadRequest("player_id or account_hash is required")
		case errors.Is(err, database.ErrNotFound):
			rw.NotFound("player not found")
		default:
			rw.InternalError(err)
		}
		return
	}

	if err := h.db.AddGroupMember(r.Context(), groupID, player.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("group not found")
			return
		}
		rw.InternalError(err)
		return
	}
	rw.Created(player)
}

var errBadMemberRequest = errors.New("player_id or account_hash required")

func (h *Handlers) resolveMember(r *http.Request, groupID int64, req *addMemberRequest) (*models.Player, error) {
	ctx := r.Context()
	if req.PlayerID > 0 {
		return h.db.GetPlayer(ctx, req.PlayerID)
	}
	if req.AccountHash == "" {
		return nil, errBadMemberRequest
	}

	player, err := h.db.GetPlayerByAccountHash(ctx, req.AccountHash)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	// Unknown account: registration is gated on the group's config, falling
	// back to the server-level default when the group has none.
	autoRegister := h.cfg.Ingest.AutoRegister
	if cfg, cfgErr := h.db.GetGroupConfig(ctx, groupID); cfgErr == nil {
		autoRegister = cfg.AutoRegister
	}
	if !autoRegister {
		return nil, err
	}

	name := req.Name
	if name == "" || len(name) > 12 {
		return nil, errBadMemberRequest
	}
	return h.db.CreatePlayer(ctx, req.AccountHash, name)
}

// RemoveGroupMember unlinks a player from the group. The player record and
// committed events are kept.
func (h *Handlers) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
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

	if err := h.db.RemoveGroupMember(r.Context(), groupID, playerID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound("membership not found")
			return
		}
		rw.InternalError(err)
		return
	}
	rw.NoContent()
}

// ListGroupEvents returns the group's committed events, newest first.
func (h *Handlers) ListGroupEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := urlParamInt64(r, "groupID")
	if !ok {
		rw.BadRequest("invalid group id")
		return
	}
	limit, offset := pagination(r)

	events, err := h.db.ListGroupEvents(r.Context(), id, limit, offset)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(events)
}

// validationDetails flattens field errors into a field-to-message map.
func validationDetails(verr *validation.RequestValidationError) map[string]string {
	details := make(map[string]string)
	for _, fe := range verr.Fields() {
		details[fe.Field] = fe.Message
	}
	return details
}
