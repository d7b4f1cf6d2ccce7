// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"net/http"

	"github.com/lootledger/lootledger/internal/models"
)

// ListNotificationTasks returns notification tasks filtered by status,
// defaulting to pending.
func (h *Handlers) ListNotificationTasks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	status := models.TaskStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.TaskPending
	}
	if !status.Valid() {
		rw.BadRequest("invalid task status")
		return
	}
	limit, offset := pagination(r)

	tasks, err := h.db.ListTasks(r.Context(), status, limit, offset)
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(tasks)
}

// NotificationStats returns task counts grouped by status.
func (h *Handlers) NotificationStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	counts, err := h.db.CountTasksByStatus(r.Context())
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(map[string]interface{}{"by_status": counts})
}
