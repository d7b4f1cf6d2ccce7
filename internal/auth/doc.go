// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

/*
Package auth secures the admin API.

A single configured admin account logs in with username and password; the
password is bcrypt-compared against a hash computed at startup. Successful
logins receive an HMAC-SHA256 signed JWT whose lifetime is the configured
token TTL. Middleware validates the bearer token on write endpoints and
attaches the claims to the request context.

Failed logins feed a per-subject lockout with exponential backoff, tracked
by both username and client IP so a distributed guesser cannot reset the
counter by rotating addresses.
*/
package auth
