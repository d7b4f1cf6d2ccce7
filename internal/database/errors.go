// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package database

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateFingerprint is returned when an event insert collides
	// with an already-committed fingerprint.
	ErrDuplicateFingerprint = errors.New("duplicate fingerprint")

	// ErrAlreadyReserved is returned when an idempotency key is held by
	// another in-flight submission.
	ErrAlreadyReserved = errors.New("fingerprint already reserved")
)

// IsTransient reports whether the error looks like a retryable storage
// failure rather than a logic error. Callers use this to choose between
// outcome "retry_later" and "rejected".
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateFingerprint) || errors.Is(err, ErrAlreadyReserved) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"database is locked",
		"out of memory",
		"io error",
		"connection",
		"timeout",
		"context deadline exceeded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isUniqueViolation detects DuckDB unique/primary key constraint errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "primary key")
}
