// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package ingest

import (
	"context"

	"github.com/lootledger/lootledger/internal/models"
)

// Verifier checks that a high-value drop is plausible before it commits.
// Group configs set the value threshold above which verification runs.
type Verifier interface {
	Verify(ctx context.Context, sub *models.Submission) error
}

// StaticVerifier validates drops against a known source → item table.
// Sources absent from the table are not checked; the table only encodes
// drops worth forging.
type StaticVerifier struct {
	table map[string]map[int64]bool
}

// NewStaticVerifier builds a verifier from a source → item ids table.
func NewStaticVerifier(table map[string][]int64) *StaticVerifier {
	v := &StaticVerifier{table: make(map[string]map[int64]bool, len(table))}
	for source, items := range table {
		set := make(map[int64]bool, len(items))
		for _, id := range items {
			set[id] = true
		}
		v.table[source] = set
	}
	return v
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(_ context.Context, sub *models.Submission) error {
	if sub.Kind != models.KindDrop {
		return nil
	}
	items, ok := v.table[sub.Source]
	if !ok {
		return nil
	}
	if !items[sub.ItemID] {
		return reject(ReasonUnverifiedDrop,
			"item %d is not dropped by %s", sub.ItemID, sub.Source)
	}
	return nil
}

// NopVerifier accepts everything. Used when no drop table is configured.
type NopVerifier struct{}

// Verify implements Verifier.
func (NopVerifier) Verify(context.Context, *models.Submission) error { return nil }
