// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package websocket

import (
	"context"

	"github.com/lootledger/lootledger/internal/bus"
	"github.com/lootledger/lootledger/internal/leaderboard"
	"github.com/lootledger/lootledger/internal/models"
)

// SubscribeHub attaches the hub to the event bus: every committed event is
// pushed to connected clients as an activity line, followed by board-update
// notices for the groups and periods the event moved. Broadcast is
// best-effort, so the handler never returns an error and never triggers a
// bus retry.
func SubscribeHub(b *bus.Bus, hub *Hub) {
	b.Subscribe("websocket-broadcast", func(ctx context.Context, event *models.Event) error {
		hub.BroadcastEvent(event)

		periods := leaderboard.PeriodsFor(event.OccurredAt)
		for _, groupID := range event.GroupIDs {
			hub.BroadcastBoardUpdate(groupID, periods)
		}
		return nil
	})
}
