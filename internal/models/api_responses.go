// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package models

import (
	"time"

	"github.com/google/uuid"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response observability fields.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is the structured error payload with a machine-readable code.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SubmitOutcome is the closed set of outcomes a submitting client can
// observe. Downstream fanout and render failures are never surfaced here.
type SubmitOutcome string

const (
	// OutcomeAccepted means a new event was committed.
	OutcomeAccepted SubmitOutcome = "accepted"
	// OutcomeDuplicate means the fingerprint was already processed; the
	// submission was an idempotent no-op.
	OutcomeDuplicate SubmitOutcome = "duplicate"
	// OutcomeRejected means the payload failed validation or configuration
	// checks and must not be retried unchanged.
	OutcomeRejected SubmitOutcome = "rejected"
	// OutcomeRetryLater means a transient store failure interrupted the
	// commit; the reservation was released and the client may retry.
	OutcomeRetryLater SubmitOutcome = "retry_later"
)

// SubmitResponse is the webhook endpoint's response body.
type SubmitResponse struct {
	Outcome    SubmitOutcome `json:"outcome"`
	ReasonCode string        `json:"reason_code,omitempty"`
	Message    string        `json:"message,omitempty"`
	EventID    *uuid.UUID    `json:"event_id,omitempty"`
	Points     int64         `json:"points,omitempty"`
}
