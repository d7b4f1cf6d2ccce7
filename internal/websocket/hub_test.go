// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub starts a hub and stops it when the test finishes.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(10 * time.Millisecond)
	return hub
}

// createTestClient builds a client with no underlying connection.
func createTestClient(hub *Hub) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		send: make(chan Message, 256),
	}
}

// registerClient registers a client and waits for the hub loop to pick it up.
func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func testEvent() *models.Event {
	now := time.Now().UTC()
	return &models.Event{
		ID:         uuid.New(),
		Kind:       models.KindDrop,
		PlayerID:   1,
		PlayerName: "Zezima",
		GroupIDs:   []int64{7},
		Source:     "Vorkath",
		ItemID:     22006,
		ItemName:   "Skeletal visage",
		Quantity:   1,
		Value:      1000,
		TotalValue: 1000,
		Points:     10,
		OccurredAt: now,
		ReceivedAt: now,
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil || hub.broadcast == nil || hub.Register == nil || hub.Unregister == nil {
		t.Error("hub channels not initialized")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("expected 0 clients initially, got %d", hub.GetClientCount())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)

	registerClient(hub, client)
	if hub.GetClientCount() != 1 {
		t.Fatalf("expected 1 client after register, got %d", hub.GetClientCount())
	}

	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)
	if hub.GetClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.GetClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("unregister did not close the client send channel")
	}
}

func TestBroadcastEventReachesAllClients(t *testing.T) {
	hub := setupHub(t)
	clients := []*Client{createTestClient(hub), createTestClient(hub), createTestClient(hub)}
	for _, c := range clients {
		registerClient(hub, c)
	}

	hub.BroadcastEvent(testEvent())
	time.Sleep(20 * time.Millisecond)

	for i, c := range clients {
		select {
		case msg := <-c.send:
			if msg.Type != MessageTypeEventCommitted {
				t.Errorf("client %d got type %q, want %q", i, msg.Type, MessageTypeEventCommitted)
			}
			activity, ok := msg.Data.(eventActivity)
			if !ok {
				t.Fatalf("client %d got payload %T", i, msg.Data)
			}
			if activity.PlayerName != "Zezima" || activity.Points != 10 {
				t.Errorf("client %d got %+v", i, activity)
			}
		default:
			t.Errorf("client %d received nothing", i)
		}
	}
}

func TestBroadcastBoardUpdate(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(hub, client)

	periods := []models.Period{
		{Kind: models.PeriodDaily, Key: "2026-08-30"},
		{Kind: models.PeriodAllTime, Key: "all"},
	}
	hub.BroadcastBoardUpdate(7, periods)
	time.Sleep(20 * time.Millisecond)

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeBoardUpdate {
			t.Fatalf("got type %q, want %q", msg.Type, MessageTypeBoardUpdate)
		}
		data := msg.Data.(BoardUpdateData)
		if data.GroupID != 7 || len(data.Periods) != 2 {
			t.Errorf("got %+v", data)
		}
		if data.Periods[0] != "daily/2026-08-30" {
			t.Errorf("got period key %q", data.Periods[0])
		}
	default:
		t.Fatal("client received nothing")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := setupHub(t)
	slow := createTestClient(hub)
	slow.send = make(chan Message) // unbuffered, nothing reading
	healthy := createTestClient(hub)
	registerClient(hub, slow)
	registerClient(hub, healthy)

	hub.BroadcastJSON(MessageTypeTaskUpdate, map[string]int{"pending": 3})
	time.Sleep(20 * time.Millisecond)

	if hub.GetClientCount() != 1 {
		t.Errorf("expected the slow client to be dropped, have %d clients", hub.GetClientCount())
	}
	select {
	case msg := <-healthy.send:
		if msg.Type != MessageTypeTaskUpdate {
			t.Errorf("healthy client got type %q", msg.Type)
		}
	default:
		t.Error("healthy client received nothing")
	}
}

func TestServeShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()
	time.Sleep(10 * time.Millisecond)

	client := createTestClient(hub)
	registerClient(hub, client)

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if _, ok := <-client.send; ok {
		t.Error("shutdown did not close the client send channel")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("expected 0 clients after shutdown, got %d", hub.GetClientCount())
	}
}

func TestMarshalMessage(t *testing.T) {
	data, err := MarshalMessage(Message{Type: MessageTypePong})
	if err != nil {
		t.Fatalf("MarshalMessage: %v", err)
	}
	if string(data) != `{"type":"pong","data":null}` {
		t.Errorf("got %s", data)
	}
}
