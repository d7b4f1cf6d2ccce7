// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package api exposes the HTTP surface: the webhook ingestion endpoint,
// the read API for players, groups, events, leaderboards, and lootboards,
// the admin write API, and the websocket upgrade endpoint.
//
// All JSON endpoints except the webhook wrap their payloads in
// models.APIResponse. The webhook answers with a bare models.SubmitResponse
// because its clients are in-game plugins that key retry behavior off the
// outcome field alone.
package api
