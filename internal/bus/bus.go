// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package bus carries committed events from the ingest pipeline to the
// asynchronous consumers (notification fanout, lootboard invalidation, the
// live WebSocket feed). It wraps a Watermill in-process pub/sub: by the
// time a message is published the event is already durable, so consumers
// that lag or fail can always be replayed from the database.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/models"
)

// TopicEventCommitted carries every durably committed event.
const TopicEventCommitted = "event.committed"

// Bus is the in-process event bus.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
}

// New creates a bus with a router carrying recoverer and retry middleware.
func New() (*Bus, error) {
	logger := newLoggerAdapter()

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 15 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create message router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	return &Bus{pubsub: pubsub, router: router, logger: logger}, nil
}

// PublishEvent publishes a committed event. Publish failures are the
// caller's to log; they never imply the commit failed.
func (b *Bus) PublishEvent(event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := message.NewMessage(event.ID.String(), payload)
	if err := b.pubsub.Publish(TopicEventCommitted, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// EventHandler consumes one committed event. Returning an error triggers
// the router's retry middleware.
type EventHandler func(ctx context.Context, event *models.Event) error

// Subscribe registers a named consumer for committed events. Must be called
// before Run.
func (b *Bus) Subscribe(name string, handler EventHandler) {
	b.router.AddNoPublisherHandler(
		name,
		TopicEventCommitted,
		b.pubsub,
		func(msg *message.Message) error {
			var event models.Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				// Undecodable payloads cannot succeed on retry.
				b.logger.Error("Dropping undecodable event message", err,
					watermill.LogFields{"message_uuid": msg.UUID})
				return nil
			}
			return handler(msg.Context(), &event)
		},
	)
}

func (b *Bus) String() string { return "event-bus" }

// Serve runs the router until the context is canceled. Implements the
// supervised service contract.
func (b *Bus) Serve(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running returns a channel closed once the router is running; tests use it
// to avoid publishing before subscription setup completes.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}

// Close shuts down the router and pub/sub.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubsub.Close()
}
