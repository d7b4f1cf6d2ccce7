// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// requestIDKey is the context key for HTTP request IDs.
	requestIDKey contextKey = "request_id"

	// submissionIDKey is the context key for the client-generated submission id
	// that follows a payload through the ingestion pipeline.
	submissionIDKey contextKey = "submission_id"
)

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a new context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithSubmissionID returns a new context carrying the submission id.
func ContextWithSubmissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, submissionIDKey, id)
}

// SubmissionIDFromContext retrieves the submission id from context.
func SubmissionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(submissionIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger with request and submission ids from the context
// automatically attached. This is the recommended way to log inside handlers
// and pipeline stages.
//
//	logging.Ctx(ctx).Info().Msg("Processing submission")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()
	logCtx := logger.With()
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logCtx = logCtx.Str("request_id", requestID)
	}
	if submissionID := SubmissionIDFromContext(ctx); submissionID != "" {
		logCtx = logCtx.Str("submission_id", submissionID)
	}
	logger = logCtx.Logger()
	return &logger
}
