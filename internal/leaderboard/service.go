// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/models"
)

// Store is the persistence surface the aggregator reads from, implemented
// by the database layer.
type Store interface {
	TopEntries(ctx context.Context, groupID int64, period models.Period, limit int) ([]*models.LeaderboardEntry, error)
	PlayerEntry(ctx context.Context, groupID, playerID int64, period models.Period) (*models.LeaderboardEntry, error)
	BoardVersion(ctx context.Context, groupID int64, period models.Period) (int64, error)
	GroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	SumEventPoints(ctx context.Context, groupID, playerID int64, from, to time.Time) (int64, int64, int64, error)
	ResetLeaderboardEntry(ctx context.Context, groupID, playerID int64, period models.Period, points, totalValue, eventCount int64) error
}

// Service exposes ranked leaderboard reads and reconciliation.
type Service struct {
	store Store
}

// NewService creates a leaderboard service over a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Top returns the ranked board for (group, period), at most n entries.
func (s *Service) Top(ctx context.Context, groupID int64, period models.Period, n int) ([]*models.LeaderboardEntry, error) {
	if n <= 0 {
		n = 25
	}
	return s.store.TopEntries(ctx, groupID, period, n)
}

// PlayerRank returns one player's entry and rank for (group, period).
func (s *Service) PlayerRank(ctx context.Context, groupID, playerID int64, period models.Period) (*models.LeaderboardEntry, error) {
	return s.store.PlayerEntry(ctx, groupID, playerID, period)
}

// Version returns the monotonic board version for (group, period).
func (s *Service) Version(ctx context.Context, groupID int64, period models.Period) (int64, error) {
	return s.store.BoardVersion(ctx, groupID, period)
}

// Divergence describes one aggregate that did not match the recomputed sum
// of its events.
type Divergence struct {
	PlayerID     int64 `json:"player_id"`
	StoredPoints int64 `json:"stored_points"`
	ActualPoints int64 `json:"actual_points"`
}

// Reconcile recomputes every member's total for (group, period) from the
// raw events table and repairs aggregates that drifted. The incremental
// write path keeps the books balanced on its own; reconciliation exists to
// detect and heal the aftermath of bugs or operator surgery, and is safe to
// run while ingestion continues.
func (s *Service) Reconcile(ctx context.Context, groupID int64, period models.Period) ([]Divergence, error) {
	from, to, err := PeriodBounds(period)
	if err != nil {
		return nil, err
	}

	memberIDs, err := s.store.GroupMemberIDs(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}

	var divergences []Divergence
	for _, playerID := range memberIDs {
		points, totalValue, count, err := s.store.SumEventPoints(ctx, groupID, playerID, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to recompute player %d: %w", playerID, err)
		}

		entry, err := s.store.PlayerEntry(ctx, groupID, playerID, period)
		stored := int64(0)
		switch {
		case err == nil:
			stored = entry.Total
		case errors.Is(err, database.ErrNotFound):
			// No aggregate row yet; stored stays zero.
		default:
			return nil, fmt.Errorf("failed to read entry for player %d: %w", playerID, err)
		}

		if stored == points {
			continue
		}
		divergences = append(divergences, Divergence{
			PlayerID:     playerID,
			StoredPoints: stored,
			ActualPoints: points,
		})
		if count == 0 && stored == 0 {
			continue
		}
		if err := s.store.ResetLeaderboardEntry(ctx, groupID, playerID, period, points, totalValue, count); err != nil {
			return nil, fmt.Errorf("failed to repair player %d: %w", playerID, err)
		}
		logging.Ctx(ctx).Warn().
			Int64("group_id", groupID).
			Int64("player_id", playerID).
			Str("period", period.String()).
			Int64("stored", stored).
			Int64("actual", points).
			Msg("Repaired diverged leaderboard aggregate")
	}
	return divergences, nil
}
