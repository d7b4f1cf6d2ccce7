// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/models"
)

const (
	defaultWebhookRPM = 600
	defaultAPIRPM     = 300

	// Login attempts are limited per IP independently of the lockout
	// tracker, which keys on username.
	loginLimit  = 5
	loginWindow = 5 * time.Minute
)

// Middleware builds the chi middleware stack from security configuration.
type Middleware struct {
	cfg  *config.SecurityConfig
	cors func(http.Handler) http.Handler
}

// NewMiddleware wires CORS and rate limit factories from config.
func NewMiddleware(cfg *config.SecurityConfig) *Middleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Lootledger-Signature", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Lootledger-Board-Version"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
	return &Middleware{cfg: cfg, cors: corsHandler}
}

// CORS returns the shared CORS handler.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitWebhook limits submissions per client IP. Plugins burst when a
// player logs back in, so the limit is per minute rather than smoothed.
func (m *Middleware) RateLimitWebhook() func(http.Handler) http.Handler {
	return perIPLimit(m.cfg.RateLimitWebhook, defaultWebhookRPM, time.Minute)
}

// RateLimitAPI limits read and admin API calls per client IP.
func (m *Middleware) RateLimitAPI() func(http.Handler) http.Handler {
	return perIPLimit(m.cfg.RateLimitAPI, defaultAPIRPM, time.Minute)
}

// RateLimitLogin applies a strict per-IP limit to the token endpoint.
func (m *Middleware) RateLimitLogin() func(http.Handler) http.Handler {
	return perIPLimit(loginLimit, loginLimit, loginWindow)
}

func perIPLimit(requests, fallback int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		requests = fallback
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(&models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    ErrCodeTooManyRequests,
			Message: "rate limit exceeded",
		},
	})
}

// SecurityHeaders sets response headers appropriate for a JSON API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
