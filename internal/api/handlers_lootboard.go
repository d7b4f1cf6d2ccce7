// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/lootboard"
)

// boardVersionHeader exposes the artifact's board version so clients can
// detect staleness without decoding the body.
const boardVersionHeader = "X-Lootledger-Board-Version"

// GetLootboard serves the rendered board artifact. A stale artifact is
// served immediately while regeneration runs in the background; a board
// that has never been rendered answers 202 so clients retry shortly.
func (h *Handlers) GetLootboard(w http.ResponseWriter, r *http.Request) {
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

	artifact, err := h.lootboards.Get(r.Context(), groupID, period)
	if errors.Is(err, lootboard.ErrNotReady) {
		w.Header().Set("Retry-After", "2")
		rw.Accepted(map[string]interface{}{
			"group_id": groupID,
			"period":   period,
			"message":  "board is being generated, retry shortly",
		})
		return
	}
	if err != nil {
		rw.InternalError(err)
		return
	}

	etag := `"` + strconv.FormatInt(artifact.Version, 10) + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Bytes)))
	w.Header().Set("ETag", etag)
	w.Header().Set(boardVersionHeader, strconv.FormatInt(artifact.Version, 10))
	w.Header().Set("Last-Modified", artifact.GeneratedAt.UTC().Format(http.TimeFormat))
	if _, err := w.Write(artifact.Bytes); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("client dropped lootboard download")
	}
}

// RegenerateLootboard forces a synchronous re-render of one board and
// returns the fresh artifact's metadata.
func (h *Handlers) RegenerateLootboard(w http.ResponseWriter, r *http.Request) {
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

	artifact, err := h.lootboards.Regenerate(r.Context(), groupID, period)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(map[string]interface{}{
		"group_id":     artifact.GroupID,
		"period":       artifact.Period,
		"version":      artifact.Version,
		"content_type": artifact.ContentType,
		"size_bytes":   len(artifact.Bytes),
		"generated_at": artifact.GeneratedAt.UTC().Format(time.RFC3339),
	})
}
