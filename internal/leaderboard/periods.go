// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package leaderboard maintains the per-group ranked totals. Incremental
// deltas are folded in by the commit transaction; this package derives the
// aggregation periods an event belongs to, exposes ranked reads, and can
// reconcile stored aggregates against raw event history.
package leaderboard

import (
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/models"
)

// AllTimeKey is the single period key of the all-time board.
const AllTimeKey = "all"

// PeriodsFor returns every aggregation window the timestamp falls into:
// daily, ISO-week, monthly, and all-time. Periods always derive from the
// event's true occurrence time, never arrival order, so late submissions
// land in their correct window.
func PeriodsFor(t time.Time) []models.Period {
	t = t.UTC()
	year, week := t.ISOWeek()
	return []models.Period{
		{Kind: models.PeriodDaily, Key: t.Format("2006-01-02")},
		{Kind: models.PeriodWeekly, Key: fmt.Sprintf("%d-W%02d", year, week)},
		{Kind: models.PeriodMonthly, Key: fmt.Sprintf("%d%02d", t.Year(), int(t.Month()))},
		{Kind: models.PeriodAllTime, Key: AllTimeKey},
	}
}

// CurrentPeriod returns the period of the given kind containing now.
func CurrentPeriod(kind models.PeriodKind, now time.Time) (models.Period, error) {
	for _, p := range PeriodsFor(now) {
		if p.Kind == kind {
			return p, nil
		}
	}
	return models.Period{}, fmt.Errorf("unknown period kind %q", kind)
}

// PeriodBounds returns the half-open [from, to) time range covered by a
// period. Reconciliation uses the bounds to recompute aggregates from the
// events table.
func PeriodBounds(p models.Period) (time.Time, time.Time, error) {
	switch p.Kind {
	case models.PeriodDaily:
		day, err := time.Parse("2006-01-02", p.Key)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid daily key %q: %w", p.Key, err)
		}
		return day, day.AddDate(0, 0, 1), nil

	case models.PeriodWeekly:
		var year, week int
		if _, err := fmt.Sscanf(p.Key, "%d-W%d", &year, &week); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid weekly key %q: %w", p.Key, err)
		}
		start := isoWeekStart(year, week)
		return start, start.AddDate(0, 0, 7), nil

	case models.PeriodMonthly:
		month, err := time.Parse("200601", p.Key)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid monthly key %q: %w", p.Key, err)
		}
		return month, month.AddDate(0, 1, 0), nil

	case models.PeriodAllTime:
		return time.Unix(0, 0).UTC(), time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), nil

	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period kind %q", p.Kind)
	}
}

// isoWeekStart returns the Monday starting the given ISO week, UTC midnight.
func isoWeekStart(year, week int) time.Time {
	// Jan 4 is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// ParsePeriod parses the kind/key form used in URLs and cache keys.
func ParsePeriod(kind, key string) (models.Period, error) {
	p := models.Period{Kind: models.PeriodKind(kind), Key: key}
	if !p.Kind.Valid() {
		return models.Period{}, fmt.Errorf("unknown period kind %q", kind)
	}
	if _, _, err := PeriodBounds(p); err != nil {
		return models.Period{}, err
	}
	return p, nil
}
