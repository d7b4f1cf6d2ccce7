// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"net"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/logging"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// Login exchanges admin credentials for a bearer token. Failures are
// tracked per username and per client IP; either subject locking out
// blocks the attempt before credentials are checked.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.jwt == nil || h.creds == nil {
		rw.NotFound("authentication is disabled")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("body is not valid JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		rw.BadRequest("username and password are required")
		return
	}

	subjects := []string{"user:" + req.Username, "ip:" + clientIP(r)}
	for _, subject := range subjects {
		if locked, remaining := h.lockout.CheckLocked(subject); locked {
			rw.TooManyRequests("account temporarily locked", remaining)
			return
		}
	}

	if !h.creds.Verify(req.Username, req.Password) {
		for _, subject := range subjects {
			h.lockout.RecordFailure(subject)
		}
		logging.Ctx(r.Context()).Warn().
			Str("username", req.Username).
			Str("remote", r.RemoteAddr).
			Msg("failed login attempt")
		rw.Unauthorized("invalid credentials")
		return
	}

	for _, subject := range subjects {
		h.lockout.RecordSuccess(subject)
	}

	token, err := h.jwt.GenerateToken(req.Username, "admin")
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(&loginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.jwt.TTL().Seconds()),
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
