// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package lootboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/metrics"
	"github.com/lootledger/lootledger/internal/models"
)

// BoardSource provides the data a render needs, implemented by the
// database layer plus the leaderboard service.
type BoardSource interface {
	BoardVersion(ctx context.Context, groupID int64, period models.Period) (int64, error)
	TopEntries(ctx context.Context, groupID int64, period models.Period, limit int) ([]*models.LeaderboardEntry, error)
}

// Service is the artifact cache. Reads are always non-blocking against
// regeneration: a stale artifact is served while a fresh one renders, and a
// board never rendered before returns ErrNotReady while its first render
// runs in the background.
type Service struct {
	store    *Store
	source   BoardSource
	renderer Renderer

	topN          int
	renderTimeout time.Duration

	group singleflight.Group

	mu    sync.Mutex
	dirty map[string]boardRef
}

type boardRef struct {
	groupID int64
	period  models.Period
}

// NewService creates the artifact cache service.
func NewService(store *Store, source BoardSource, renderer Renderer, topN int, renderTimeout time.Duration) *Service {
	if topN <= 0 {
		topN = 25
	}
	if renderTimeout <= 0 {
		renderTimeout = 30 * time.Second
	}
	return &Service{
		store:         store,
		source:        source,
		renderer:      renderer,
		topN:          topN,
		renderTimeout: renderTimeout,
		dirty:         make(map[string]boardRef),
	}
}

// Get returns the current artifact for a board. A stale artifact is served
// immediately with regeneration kicked off behind it; ErrNotReady is
// returned when the board was never rendered (regeneration also kicked off).
func (s *Service) Get(ctx context.Context, groupID int64, period models.Period) (*Artifact, error) {
	artifact, err := s.store.Get(groupID, period)
	if err == ErrNotReady {
		s.regenerateAsync(groupID, period)
		return nil, ErrNotReady
	}
	if err != nil {
		return nil, err
	}

	version, err := s.source.BoardVersion(ctx, groupID, period)
	if err != nil {
		// The authoritative version is unreachable; the cached artifact is
		// still the best answer available.
		logging.Ctx(ctx).Warn().Err(err).
			Int64("group_id", groupID).
			Str("period", period.String()).
			Msg("Board version check failed, serving cached artifact")
		return artifact, nil
	}

	if artifact.Version >= version {
		metrics.LootboardCacheHits.Inc()
		return artifact, nil
	}

	metrics.LootboardCacheStale.Inc()
	s.regenerateAsync(groupID, period)
	return artifact, nil
}

// Invalidate marks a board stale and schedules regeneration. Called by the
// committed-event consumer; the version bump in the commit transaction is
// what actually makes cached artifacts stale, so a crash between commit and
// Invalidate only delays regeneration until the next read.
func (s *Service) Invalidate(groupID int64, period models.Period) {
	s.mu.Lock()
	s.dirty[key(groupID, period)] = boardRef{groupID: groupID, period: period}
	s.mu.Unlock()
}

// RefreshDirty regenerates every board marked dirty since the last call.
func (s *Service) RefreshDirty(ctx context.Context) {
	s.mu.Lock()
	pending := s.dirty
	s.dirty = make(map[string]boardRef)
	s.mu.Unlock()

	for _, ref := range pending {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Regenerate(ctx, ref.groupID, ref.period); err != nil {
			logging.Error().Err(err).
				Int64("group_id", ref.groupID).
				Str("period", ref.period.String()).
				Msg("Background board regeneration failed")
		}
	}
}

// Regenerate renders the board from current aggregates and stores the
// artifact. Concurrent calls for the same board collapse into one render.
// The render works from the version read before the entries, so an artifact
// can understate but never overstate what it reflects.
func (s *Service) Regenerate(ctx context.Context, groupID int64, period models.Period) (*Artifact, error) {
	result, err, _ := s.group.Do(key(groupID, period), func() (any, error) {
		return s.render(ctx, groupID, period)
	})
	if err != nil {
		metrics.LootboardRegenerations.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LootboardRegenerations.WithLabelValues("ok").Inc()
	return result.(*Artifact), nil
}

func (s *Service) render(ctx context.Context, groupID int64, period models.Period) (*Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.renderTimeout)
	defer cancel()
	start := time.Now()

	version, err := s.source.BoardVersion(ctx, groupID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to read board version: %w", err)
	}
	entries, err := s.source.TopEntries(ctx, groupID, period, s.topN)
	if err != nil {
		return nil, fmt.Errorf("failed to read board entries: %w", err)
	}

	data, contentType, err := s.renderer.Render(ctx, &BoardData{
		GroupID: groupID,
		Period:  period,
		Version: version,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render board: %w", err)
	}
	metrics.LootboardRenderDuration.Observe(time.Since(start).Seconds())

	artifact := &Artifact{
		GroupID:     groupID,
		Period:      period.String(),
		Version:     version,
		ContentType: contentType,
		Bytes:       data,
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.store.Put(artifact); err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}
	return artifact, nil
}

func (s *Service) regenerateAsync(groupID int64, period models.Period) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.renderTimeout)
		defer cancel()
		if _, err := s.Regenerate(ctx, groupID, period); err != nil {
			logging.Error().Err(err).
				Int64("group_id", groupID).
				Str("period", period.String()).
				Msg("Async board regeneration failed")
		}
	}()
}

// Refresher periodically regenerates dirty boards so artifacts stay warm
// between reads. Runs as a supervised service.
type Refresher struct {
	service  *Service
	interval time.Duration
}

// NewRefresher creates a refresher ticking at the given interval.
func NewRefresher(service *Service, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Refresher{service: service, interval: interval}
}

func (r *Refresher) String() string { return "lootboard-refresher" }

// Serve runs the refresh loop until the context is canceled.
func (r *Refresher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.service.RefreshDirty(ctx)
		}
	}
}
