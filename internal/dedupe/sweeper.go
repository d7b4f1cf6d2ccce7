// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package dedupe

import (
	"context"
	"time"

	"github.com/lootledger/lootledger/internal/logging"
)

// Sweeper periodically purges expired reservations from both layers. It runs
// as a supervised service.
type Sweeper struct {
	deduper  *Deduper
	interval time.Duration
}

// NewSweeper creates a sweeper ticking at the given interval.
func NewSweeper(deduper *Deduper, interval time.Duration) *Sweeper {
	return &Sweeper{deduper: deduper, interval: interval}
}

func (s *Sweeper) String() string { return "dedupe-sweeper" }

// Serve runs the sweep loop until the context is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	local := s.deduper.sweepLocal(time.Now())

	purged, err := s.deduper.store.PurgeExpiredFingerprints(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Fingerprint purge failed")
		return
	}
	if local > 0 || purged > 0 {
		logging.Debug().
			Int("local", local).
			Int64("durable", purged).
			Msg("Swept expired fingerprints")
	}
}
