// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/websocket"
)

// newUpgrader builds the websocket upgrader with an origin check against
// the configured CORS origins. An empty origin list admits same-origin and
// non-browser clients only; "*" admits everything.
func (h *Handlers) newUpgrader() *gorillaws.Upgrader {
	origins := h.cfg.Security.CORSOrigins
	return &gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range origins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// WebSocketUpgrade upgrades the connection and attaches the client to the
// broadcast hub. The client receives committed events and board update
// notices until it disconnects or falls too far behind.
func (h *Handlers) WebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.newUpgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
