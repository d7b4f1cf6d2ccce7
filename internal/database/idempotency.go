// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/metrics"
)

// Idempotency key states. A key is reserved while a submission is in
// flight and committed once its event is durable. Reserved keys expire so
// a crashed worker cannot block a fingerprint forever.
const (
	keyStateReserved  = "reserved"
	keyStateCommitted = "committed"
)

// ReserveFingerprint claims a fingerprint for an in-flight submission.
// Returns ErrDuplicateFingerprint if the key is already committed and
// ErrAlreadyReserved if another submission currently holds it. Expired
// reservations are taken over.
func (db *DB) ReserveFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) error {
	start := time.Now()
	now := time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO idempotency_keys (fingerprint, state, expires_at, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		fingerprint, keyStateReserved, now.Add(ttl), now)
	if err != nil {
		metrics.ObserveDBQuery("insert", "idempotency_keys", start, err)
		return fmt.Errorf("failed to reserve fingerprint: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		metrics.ObserveDBQuery("insert", "idempotency_keys", start, nil)
		return nil
	}

	// Key exists. Take it over only if it is a reservation past its expiry.
	res, err = db.conn.ExecContext(ctx,
		`UPDATE idempotency_keys SET expires_at = ?, created_at = ?
		 WHERE fingerprint = ? AND state = ? AND expires_at < ?`,
		now.Add(ttl), now, fingerprint, keyStateReserved, now)
	metrics.ObserveDBQuery("insert", "idempotency_keys", start, err)
	if err != nil {
		return fmt.Errorf("failed to take over fingerprint: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	var state string
	err = db.conn.QueryRowContext(ctx,
		`SELECT state FROM idempotency_keys WHERE fingerprint = ?`, fingerprint).
		Scan(&state)
	if err != nil {
		return fmt.Errorf("failed to query fingerprint state: %w", err)
	}
	if state == keyStateCommitted {
		return ErrDuplicateFingerprint
	}
	return ErrAlreadyReserved
}

// ReleaseFingerprint drops a reservation after a failed submission so the
// client can retry. Committed keys are never released.
func (db *DB) ReleaseFingerprint(ctx context.Context, fingerprint string) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE fingerprint = ? AND state = ?`,
		fingerprint, keyStateReserved)
	metrics.ObserveDBQuery("delete", "idempotency_keys", start, err)
	if err != nil {
		return fmt.Errorf("failed to release fingerprint: %w", err)
	}
	return nil
}

// markFingerprintCommittedTx flips a reservation to committed inside the
// event commit transaction.
func markFingerprintCommittedTx(ctx context.Context, tx execContexter, fingerprint string, retention time.Duration) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		`UPDATE idempotency_keys SET state = ?, expires_at = ?
		 WHERE fingerprint = ?`,
		keyStateCommitted, now.Add(retention), fingerprint)
	if err != nil {
		return fmt.Errorf("failed to commit fingerprint: %w", err)
	}
	return nil
}

// PurgeExpiredFingerprints removes keys past their retention window and
// returns how many were dropped. Committed keys outlive the dedupe window
// of in-memory caches; once purged, the events table UNIQUE constraint is
// the last line of defense against replays.
func (db *DB) PurgeExpiredFingerprints(ctx context.Context) (int64, error) {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at < ?`, time.Now().UTC())
	metrics.ObserveDBQuery("delete", "idempotency_keys", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to purge fingerprints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge count: %w", err)
	}
	return n, nil
}

// FingerprintCommitted reports whether the fingerprint refers to a durable
// event.
func (db *DB) FingerprintCommitted(ctx context.Context, fingerprint string) (bool, error) {
	start := time.Now()
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM idempotency_keys WHERE fingerprint = ? AND state = ?`,
		fingerprint, keyStateCommitted).Scan(&count)
	metrics.ObserveDBQuery("select", "idempotency_keys", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to query fingerprint: %w", err)
	}
	return count > 0, nil
}
