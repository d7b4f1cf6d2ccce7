// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

/*
Package websocket pushes live activity to connected dashboards.

A single Hub fans committed events and board-update notices out to every
connected client over gorilla/websocket. Each client runs a read pump
(handles pings and connection health) and a write pump (delivers hub
messages and keepalive pings). Clients whose send buffers fill up are
disconnected so one slow consumer cannot stall the rest.

SubscribeHub bridges the event bus into the hub: every event on the
event.committed topic becomes an event_committed push followed by one
board_update per affected group. Delivery is best-effort; the bridge never
fails the bus handler.
*/
package websocket
