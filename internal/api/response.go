// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/models"
)

// Machine-readable error codes carried in models.APIError.Code.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeTooManyRequests    = "too_many_requests"
	ErrCodeValidationFailed   = "validation_failed"
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeNotReady           = "not_ready"
)

// ResponseWriter writes models.APIResponse envelopes. One instance is
// created per request so QueryTimeMS reflects handler time, not middleware
// time.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter starts the response clock for a request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, startTime: time.Now()}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.writeSuccess(http.StatusOK, data, false)
}

// Cached writes a 200 response with data served from a cache.
func (rw *ResponseWriter) Cached(data interface{}) {
	rw.writeSuccess(http.StatusOK, data, true)
}

// Created writes a 201 response with the created resource.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.writeSuccess(http.StatusCreated, data, false)
}

// Accepted writes a 202 response for work that is queued but not done.
func (rw *ResponseWriter) Accepted(data interface{}) {
	rw.writeSuccess(http.StatusAccepted, data, false)
}

// NoContent writes a 204 response with no body.
func (rw *ResponseWriter) NoContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

func (rw *ResponseWriter) writeSuccess(status int, data interface{}, cached bool) {
	rw.writeJSON(status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(rw.startTime).Milliseconds(),
			Cached:      cached,
		},
	})
}

// Error writes an error response with the given status and code.
func (rw *ResponseWriter) Error(status int, code, message string) {
	rw.ErrorWithDetails(status, code, message, nil)
}

// ErrorWithDetails writes an error response with structured details.
func (rw *ResponseWriter) ErrorWithDetails(status int, code, message string, details interface{}) {
	rw.writeJSON(status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(rw.startTime).Milliseconds(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// BadRequest writes a 400 response.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// ValidationFailed writes a 400 response with per-field details.
func (rw *ResponseWriter) ValidationFailed(message string, details interface{}) {
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, message, details)
}

// Unauthorized writes a 401 response.
func (rw *ResponseWriter) Unauthorized(message string) {
	rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden writes a 403 response.
func (rw *ResponseWriter) Forbidden(message string) {
	rw.Error(http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound writes a 404 response.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict writes a 409 response.
func (rw *ResponseWriter) Conflict(message string) {
	rw.Error(http.StatusConflict, ErrCodeConflict, message)
}

// TooManyRequests writes a 429 response with a Retry-After header.
func (rw *ResponseWriter) TooManyRequests(message string, retryAfter time.Duration) {
	if retryAfter > 0 {
		rw.w.Header().Set("Retry-After", formatSeconds(retryAfter))
	}
	rw.Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, message)
}

// InternalError writes a 500 response. The underlying error is logged with
// the request id but never leaked to the client.
func (rw *ResponseWriter) InternalError(err error) {
	logging.Ctx(rw.r.Context()).Error().
		Err(err).
		Str("path", rw.r.URL.Path).
		Msg("request failed")
	rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// ServiceUnavailable writes a 503 response with a Retry-After header.
func (rw *ResponseWriter) ServiceUnavailable(message string, retryAfter time.Duration) {
	if retryAfter > 0 {
		rw.w.Header().Set("Retry-After", formatSeconds(retryAfter))
	}
	rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

func (rw *ResponseWriter) writeJSON(status int, body *models.APIResponse) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(body); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func formatSeconds(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
