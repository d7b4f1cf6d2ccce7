// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lootledger/lootledger/internal/auth"
	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/middleware"
)

// NewRouter assembles the full route tree. The webhook lives outside the
// admin auth boundary; it authenticates by body signature instead.
func NewRouter(h *Handlers) http.Handler {
	m := NewMiddleware(&h.cfg.Security)
	requireAuth := auth.Middleware(h.jwt)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(m.CORS())
	r.Use(SecurityHeaders)
	r.Use(middleware.PrometheusMetrics)
	r.Use(h.perf.Middleware)

	// Webhook ingestion: signed body, own rate limit, no bearer auth.
	r.Group(func(r chi.Router) {
		r.Use(m.RateLimitWebhook())
		r.Post("/api/v1/webhook/submit", h.WebhookSubmit)
	})

	// Token endpoint: strict per-IP limit on top of the lockout tracker.
	r.Group(func(r chi.Router) {
		r.Use(m.RateLimitLogin())
		r.Post("/api/v1/auth/login", h.Login)
	})

	// Read API: public, compressed, rate limited.
	r.Group(func(r chi.Router) {
		r.Use(m.RateLimitAPI())
		r.Use(middleware.Compression)

		r.Get("/api/v1/players", h.ListPlayers)
		r.Get("/api/v1/players/{playerID}", h.GetPlayer)
		r.Get("/api/v1/players/{playerID}/events", h.ListPlayerEvents)
		r.Get("/api/v1/players/{playerID}/groups", h.ListPlayerGroups)

		r.Get("/api/v1/groups", h.ListGroups)
		r.Get("/api/v1/groups/{groupID}", h.GetGroup)
		r.Get("/api/v1/groups/{groupID}/config", h.GetGroupConfig)
		r.Get("/api/v1/groups/{groupID}/members", h.ListGroupMembers)
		r.Get("/api/v1/groups/{groupID}/events", h.ListGroupEvents)
		r.Get("/api/v1/groups/{groupID}/leaderboard/{kind}", h.GetLeaderboard)
		r.Get("/api/v1/groups/{groupID}/leaderboard/{kind}/players/{playerID}", h.GetPlayerRank)
		r.Get("/api/v1/groups/{groupID}/lootboard/{kind}", h.GetLootboard)

		r.Get("/api/v1/events/{eventID}", h.GetEvent)
	})

	// Admin API: bearer token required unless auth_mode is none.
	r.Group(func(r chi.Router) {
		r.Use(m.RateLimitAPI())
		r.Use(requireAuth)

		r.Post("/api/v1/admin/groups", h.CreateGroup)
		r.Put("/api/v1/admin/groups/{groupID}/config", h.PutGroupConfig)
		r.Post("/api/v1/admin/groups/{groupID}/members", h.AddGroupMember)
		r.Delete("/api/v1/admin/groups/{groupID}/members/{playerID}", h.RemoveGroupMember)
		r.Post("/api/v1/admin/groups/{groupID}/leaderboard/{kind}/reconcile", h.ReconcileLeaderboard)
		r.Post("/api/v1/admin/groups/{groupID}/lootboard/{kind}/regenerate", h.RegenerateLootboard)

		r.Put("/api/v1/admin/players/{playerID}/name", h.RenamePlayer)
		r.Put("/api/v1/admin/players/{playerID}/archived", h.SetPlayerArchived)

		r.Get("/api/v1/admin/notifications/tasks", h.ListNotificationTasks)
		r.Get("/api/v1/admin/notifications/stats", h.NotificationStats)
		r.Get("/api/v1/admin/performance", h.AdminPerformanceStats)
	})

	// Live updates for dashboards.
	r.Get("/api/v1/ws", h.WebSocketUpgrade)

	// Operational endpoints, unversioned and unlimited.
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Server runs the HTTP listener under the supervision tree.
type Server struct {
	srv     *http.Server
	timeout time.Duration
}

// NewServer builds the supervised HTTP server around the assembled router.
func NewServer(cfg *config.ServerConfig, handler http.Handler) *Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// Websocket connections outlive any sane write timeout, so the
			// server-level deadline stays off and JSON handlers rely on the
			// per-request context instead.
			IdleTimeout: 120 * time.Second,
		},
		timeout: timeout,
	}
}

func (s *Server) String() string { return "http-server" }

// Serve runs the listener until ctx is canceled, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	logging.Info().Str("addr", s.srv.Addr).Msg("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Info().Str("component", s.String()).Msg("http server stopped")
	return ctx.Err()
}
