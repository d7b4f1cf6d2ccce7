// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package dedupe guarantees at-most-once event commitment. Game clients
// resend webhooks on flaky connections, so every submission carries a
// deterministic fingerprint that is reserved before processing and confirmed
// on commit.
//
// Two layers back the guarantee. An in-process reservation map absorbs
// racing retries hitting the same instance without a database round trip.
// The idempotency_keys table is authoritative across instances and restarts,
// and the events table UNIQUE constraint is the final backstop after keys
// are purged.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

// Outcome is the result of a reservation check.
type Outcome int

const (
	// Fresh means the fingerprint was unseen and is now reserved for the
	// caller. The caller must either Confirm or Release it.
	Fresh Outcome = iota
	// Duplicate means the fingerprint already committed or is held by an
	// in-flight submission.
	Duplicate
)

// Store is the durable reservation backend, implemented by the database
// layer.
type Store interface {
	ReserveFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) error
	ReleaseFingerprint(ctx context.Context, fingerprint string) error
	PurgeExpiredFingerprints(ctx context.Context) (int64, error)
}

// Deduper tracks in-flight and committed fingerprints.
type Deduper struct {
	store     Store
	retention time.Duration

	mu       sync.Mutex
	inFlight map[string]time.Time
}

// New creates a Deduper. retention bounds how long a reservation may sit
// unconfirmed before another submission can take it over.
func New(store Store, retention time.Duration) *Deduper {
	return &Deduper{
		store:     store,
		retention: retention,
		inFlight:  make(map[string]time.Time),
	}
}

// Fingerprint derives the deterministic identity of a submission. Identical
// retries hash identically; distinct drops in the same tick differ through
// the client submission id.
func Fingerprint(raw *models.RawSubmission) string {
	var b strings.Builder
	b.WriteString(raw.Type)
	b.WriteByte('|')
	b.WriteString(raw.AccountHash)
	b.WriteByte('|')
	b.WriteString(raw.Source)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(raw.ItemID, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(raw.Quantity, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(raw.Value, 10))
	b.WriteByte('|')
	b.WriteString(raw.SubmissionID)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// CheckAndReserve claims the fingerprint for the calling submission. Exactly
// one of any set of concurrent calls with the same fingerprint observes
// Fresh; the rest observe Duplicate.
func (d *Deduper) CheckAndReserve(ctx context.Context, fingerprint string) (Outcome, error) {
	now := time.Now()

	d.mu.Lock()
	if deadline, ok := d.inFlight[fingerprint]; ok && now.Before(deadline) {
		d.mu.Unlock()
		metrics.DedupeChecks.WithLabelValues("duplicate_local").Inc()
		return Duplicate, nil
	}
	d.inFlight[fingerprint] = now.Add(d.retention)
	d.mu.Unlock()

	err := d.store.ReserveFingerprint(ctx, fingerprint, d.retention)
	switch {
	case err == nil:
		metrics.DedupeChecks.WithLabelValues("fresh").Inc()
		return Fresh, nil
	case errors.Is(err, database.ErrDuplicateFingerprint),
		errors.Is(err, database.ErrAlreadyReserved):
		// The local slot was speculative; another instance holds the key.
		d.forget(fingerprint)
		metrics.DedupeChecks.WithLabelValues("duplicate_store").Inc()
		return Duplicate, nil
	default:
		d.forget(fingerprint)
		metrics.DedupeChecks.WithLabelValues("error").Inc()
		return Duplicate, fmt.Errorf("failed to reserve fingerprint: %w", err)
	}
}

// Confirm marks a reservation as committed. The durable flip happens inside
// the commit transaction; Confirm only drops the local in-flight slot.
func (d *Deduper) Confirm(fingerprint string) {
	d.forget(fingerprint)
}

// Release abandons a reservation after a failed submission so the client
// can retry with the same fingerprint.
func (d *Deduper) Release(ctx context.Context, fingerprint string) {
	d.forget(fingerprint)
	if err := d.store.ReleaseFingerprint(ctx, fingerprint); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("fingerprint", fingerprint).
			Msg("Failed to release fingerprint reservation")
	}
}

func (d *Deduper) forget(fingerprint string) {
	d.mu.Lock()
	delete(d.inFlight, fingerprint)
	d.mu.Unlock()
}

// sweepLocal drops expired local reservations and returns how many were
// removed.
func (d *Deduper) sweepLocal(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for fp, deadline := range d.inFlight {
		if now.After(deadline) {
			delete(d.inFlight, fp)
			removed++
		}
	}
	return removed
}

// InFlightCount reports the current number of local reservations.
func (d *Deduper) InFlightCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inFlight)
}
