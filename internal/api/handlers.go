// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lootledger/lootledger/internal/auth"
	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/ingest"
	"github.com/lootledger/lootledger/internal/leaderboard"
	"github.com/lootledger/lootledger/internal/lootboard"
	"github.com/lootledger/lootledger/internal/middleware"
	"github.com/lootledger/lootledger/internal/websocket"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Handlers carries the dependencies shared by all HTTP endpoints.
type Handlers struct {
	cfg        *config.Config
	db         *database.DB
	pool       *ingest.Pool
	boards     *leaderboard.Service
	lootboards *lootboard.Service
	hub        *websocket.Hub
	jwt        *auth.JWTManager
	creds      *auth.Credentials
	lockout    *auth.Lockout
	perf       *middleware.PerformanceMonitor
	started    time.Time
}

// NewHandlers builds the handler set. jwt and creds may be nil when
// security.auth_mode is none; the login endpoint then answers 404.
func NewHandlers(
	cfg *config.Config,
	db *database.DB,
	pool *ingest.Pool,
	boards *leaderboard.Service,
	lootboards *lootboard.Service,
	hub *websocket.Hub,
	jwt *auth.JWTManager,
	creds *auth.Credentials,
	lockout *auth.Lockout,
	perf *middleware.PerformanceMonitor,
) *Handlers {
	return &Handlers{
		cfg:        cfg,
		db:         db,
		pool:       pool,
		boards:     boards,
		lootboards: lootboards,
		hub:        hub,
		jwt:        jwt,
		creds:      creds,
		lockout:    lockout,
		perf:       perf,
		started:    time.Now(),
	}
}

// urlParamInt64 parses a chi URL parameter as a positive integer id.
func urlParamInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// pagination parses limit/offset query parameters with sane caps.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// HealthLive reports process liveness.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// HealthReady reports readiness: the database must answer a ping.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		rw.ServiceUnavailable("database unreachable", 5*time.Second)
		return
	}
	rw.Success(map[string]interface{}{
		"status":            "ready",
		"websocket_clients": h.hub.GetClientCount(),
	})
}

// AdminPerformanceStats returns per-endpoint latency percentiles collected
// by the performance monitor.
func (h *Handlers) AdminPerformanceStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]interface{}{
		"endpoints": h.perf.GetStats(),
	})
}
