// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

// Message types pushed to connected dashboards.
const (
	MessageTypeEventCommitted = "event_committed"
	MessageTypeBoardUpdate    = "board_update"
	MessageTypeTaskUpdate     = "task_update"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message is the envelope for all WebSocket traffic.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of connected clients and fans broadcast messages out
// to them. Slow clients whose send buffers fill are disconnected rather than
// allowed to stall the broadcast loop.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// String implements fmt.Stringer for supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

// Serve runs the hub loop until ctx is canceled, then closes every connected
// client and returns ctx.Err(). Lifecycle events are drained before broadcast
// messages so client state stays consistent.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Lifecycle first, non-blocking.
		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	closed := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
	metrics.WebSocketClients.Set(0)

	logging.Info().
		Str("component", h.String()).
		AnErr("reason", ctx.Err()).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

// broadcastToClients delivers a message to every client in stable id order.
// Clients whose send buffers are full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
}

// eventActivity is the client-facing projection of a committed event. It
// omits internal fields like the fingerprint and config version.
type eventActivity struct {
	EventID    string  `json:"event_id"`
	Kind       string  `json:"kind"`
	PlayerName string  `json:"player_name"`
	Source     string  `json:"source"`
	ItemName   string  `json:"item_name,omitempty"`
	Quantity   int64   `json:"quantity"`
	Value      int64   `json:"value"`
	TotalValue int64   `json:"total_value"`
	Points     int64   `json:"points"`
	GroupIDs   []int64 `json:"group_ids,omitempty"`
	OccurredAt string  `json:"occurred_at"`
}

// BroadcastEvent pushes a committed event to all connected clients.
func (h *Hub) BroadcastEvent(event *models.Event) {
	activity := eventActivity{
		EventID:    event.ID.String(),
		Kind:       string(event.Kind),
		PlayerName: event.PlayerName,
		Source:     event.Source,
		ItemName:   event.ItemName,
		Quantity:   event.Quantity,
		Value:      event.Value,
		TotalValue: event.TotalValue,
		Points:     event.Points,
		GroupIDs:   event.GroupIDs,
		OccurredAt: event.OccurredAt.UTC().Format(time.RFC3339),
	}

	select {
	case h.broadcast <- Message{Type: MessageTypeEventCommitted, Data: activity}:
	default:
		logging.Warn().Msg("broadcast channel full, dropping event message")
	}
}

// BoardUpdateData announces that a group's leaderboard moved for one or more
// periods. Clients re-fetch the boards they display.
type BoardUpdateData struct {
	GroupID int64    `json:"group_id"`
	Periods []string `json:"periods"`
}

// BroadcastBoardUpdate notifies clients that a group's boards changed.
func (h *Hub) BroadcastBoardUpdate(groupID int64, periods []models.Period) {
	keys := make([]string, 0, len(periods))
	for _, p := range periods {
		keys = append(keys, p.String())
	}
	data := BoardUpdateData{GroupID: groupID, Periods: keys}

	select {
	case h.broadcast <- Message{Type: MessageTypeBoardUpdate, Data: data}:
	default:
		logging.Warn().Int64("group_id", groupID).Msg("broadcast channel full, dropping board update")
	}
}

// BroadcastJSON sends an arbitrary typed message to all connected clients.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
