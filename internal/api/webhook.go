// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/models"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
	SignatureHeader = "X-Lootledger-Signature"

	// maxSubmissionBytes bounds webhook bodies. Real plugin payloads are
	// well under 1 KiB.
	maxSubmissionBytes = 64 << 10

	retryLaterAfter = 5 * time.Second
)

// WebhookSubmit ingests one event submission. The body must be signed when
// a webhook secret is configured; the signature covers the raw bytes, so it
// is verified before any JSON decoding.
func (h *Handlers) WebhookSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionBytes+1))
	if err != nil {
		writeSubmitResponse(w, r, http.StatusBadRequest, &models.SubmitResponse{
			Outcome:    models.OutcomeRejected,
			ReasonCode: "unreadable_body",
			Message:    "failed to read request body",
		})
		return
	}
	if len(body) > maxSubmissionBytes {
		writeSubmitResponse(w, r, http.StatusRequestEntityTooLarge, &models.SubmitResponse{
			Outcome:    models.OutcomeRejected,
			ReasonCode: "body_too_large",
			Message:    "submission exceeds size limit",
		})
		return
	}

	if secret := h.cfg.Security.WebhookSecret; secret != "" {
		if !verifySignature(secret, body, r.Header.Get(SignatureHeader)) {
			logging.Ctx(r.Context()).Warn().
				Str("remote", r.RemoteAddr).
				Msg("webhook submission with bad signature")
			writeSubmitResponse(w, r, http.StatusUnauthorized, &models.SubmitResponse{
				Outcome:    models.OutcomeRejected,
				ReasonCode: "bad_signature",
				Message:    "invalid or missing signature",
			})
			return
		}
	}

	var raw models.RawSubmission
	if err := json.Unmarshal(body, &raw); err != nil {
		writeSubmitResponse(w, r, http.StatusBadRequest, &models.SubmitResponse{
			Outcome:    models.OutcomeRejected,
			ReasonCode: "malformed_json",
			Message:    "body is not valid JSON",
		})
		return
	}

	resp := h.pool.Submit(r.Context(), &raw)
	writeSubmitResponse(w, r, submitStatus(resp), resp)
}

// submitStatus maps a pipeline outcome to an HTTP status. Duplicates are a
// success from the client's point of view: the event is committed.
func submitStatus(resp *models.SubmitResponse) int {
	switch resp.Outcome {
	case models.OutcomeAccepted:
		return http.StatusCreated
	case models.OutcomeDuplicate:
		return http.StatusOK
	case models.OutcomeRetryLater:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func writeSubmitResponse(w http.ResponseWriter, r *http.Request, status int, resp *models.SubmitResponse) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", formatSeconds(retryLaterAfter))
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to encode submit response")
	}
}

// verifySignature compares the hex HMAC-SHA256 of body against the header
// value in constant time.
func verifySignature(secret string, body []byte, header string) bool {
	sig, err := hex.DecodeString(header)
	if err != nil || len(sig) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
