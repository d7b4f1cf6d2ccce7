// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package lootboard

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lootledger/lootledger/internal/models"
)

type fakeSource struct {
	mu      sync.Mutex
	version int64
	entries []*models.LeaderboardEntry
}

func (f *fakeSource) BoardVersion(context.Context, int64, models.Period) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, nil
}

func (f *fakeSource) TopEntries(context.Context, int64, models.Period, int) ([]*models.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

func (f *fakeSource) bump(total int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	f.entries = []*models.LeaderboardEntry{
		{GroupID: 1, PlayerID: 1, PlayerName: "Zezima", Total: total, Rank: 1},
	}
}

// countingRenderer wraps JSONRenderer and counts invocations.
type countingRenderer struct {
	renders atomic.Int32
	block   chan struct{}
}

func (c *countingRenderer) Render(ctx context.Context, board *BoardData) ([]byte, string, error) {
	c.renders.Add(1)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	return JSONRenderer{}.Render(ctx, board)
}

func newTestService(t *testing.T, source BoardSource, renderer Renderer) *Service {
	t.Helper()
	store, err := OpenStore("")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, source, renderer, 10, time.Second)
}

var testPeriod = models.Period{Kind: models.PeriodMonthly, Key: "202608"}

func TestGetNeverRenderedReturnsNotReady(t *testing.T) {
	source := &fakeSource{}
	source.bump(100)
	svc := newTestService(t, source, &countingRenderer{})

	if _, err := svc.Get(context.Background(), 1, testPeriod); !errors.Is(err, ErrNotReady) {
		t.Fatalf("got %v, want ErrNotReady", err)
	}
}

func TestRegenerateThenGetHitsCache(t *testing.T) {
	source := &fakeSource{}
	source.bump(100)
	renderer := &countingRenderer{}
	svc := newTestService(t, source, renderer)
	ctx := context.Background()

	artifact, err := svc.Regenerate(ctx, 1, testPeriod)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if artifact.Version != 1 || artifact.ContentType != "application/json" {
		t.Errorf("artifact version=%d type=%s", artifact.Version, artifact.ContentType)
	}

	got, err := svc.Get(ctx, 1, testPeriod)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got.Bytes, artifact.Bytes) {
		t.Error("cached artifact differs from regenerated one")
	}
	if renders := renderer.renders.Load(); renders != 1 {
		t.Errorf("cache hit re-rendered: %d renders", renders)
	}
}

func TestStaleServedWhileRevalidating(t *testing.T) {
	source := &fakeSource{}
	source.bump(100)
	renderer := &countingRenderer{}
	svc := newTestService(t, source, renderer)
	ctx := context.Background()

	stale, err := svc.Regenerate(ctx, 1, testPeriod)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	// A new commit bumps the version; the next read serves the stale bytes
	// without error.
	source.bump(250)
	got, err := svc.Get(ctx, 1, testPeriod)
	if err != nil {
		t.Fatalf("Get with stale artifact: %v", err)
	}
	if got.Version != stale.Version {
		t.Errorf("got version %d, want stale version %d", got.Version, stale.Version)
	}

	// Once regeneration completes, reads see the new version.
	fresh, err := svc.Regenerate(ctx, 1, testPeriod)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if fresh.Version != 2 {
		t.Errorf("fresh version %d, want 2", fresh.Version)
	}
}

func TestRegenerateSingleFlight(t *testing.T) {
	source := &fakeSource{}
	source.bump(100)
	renderer := &countingRenderer{block: make(chan struct{})}
	svc := newTestService(t, source, renderer)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Regenerate(ctx, 1, testPeriod)
		}()
	}

	// Give the goroutines time to coalesce on the in-flight render.
	time.Sleep(50 * time.Millisecond)
	close(renderer.block)
	wg.Wait()

	if renders := renderer.renders.Load(); renders != 1 {
		t.Errorf("%d concurrent regenerations rendered %d times, want 1", n, renders)
	}
}

func TestInvalidateAndRefreshDirty(t *testing.T) {
	source := &fakeSource{}
	source.bump(100)
	renderer := &countingRenderer{}
	svc := newTestService(t, source, renderer)
	ctx := context.Background()

	svc.Invalidate(1, testPeriod)
	svc.Invalidate(1, testPeriod) // duplicate marks collapse
	svc.RefreshDirty(ctx)

	if renders := renderer.renders.Load(); renders != 1 {
		t.Fatalf("refresh rendered %d times, want 1", renders)
	}
	artifact, err := svc.Get(ctx, 1, testPeriod)
	if err != nil {
		t.Fatalf("Get after refresh: %v", err)
	}
	if artifact.Version != 1 {
		t.Errorf("refreshed artifact version %d, want 1", artifact.Version)
	}
}

func TestArtifactSurvivesStoreReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	artifact := &Artifact{
		GroupID:     7,
		Period:      testPeriod.String(),
		Version:     3,
		ContentType: "application/json",
		Bytes:       []byte(`{"entries":[]}`),
		GeneratedAt: time.Now().UTC(),
	}
	if err := store.Put(artifact); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(7, testPeriod)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Version != 3 || !bytes.Equal(got.Bytes, artifact.Bytes) {
		t.Errorf("artifact did not survive reopen: %+v", got)
	}
}

func TestPNGRendererProducesDecodableImage(t *testing.T) {
	board := &BoardData{
		GroupID: 1,
		Period:  testPeriod,
		Version: 1,
		Entries: []*models.LeaderboardEntry{
			{PlayerName: "First", Total: 1000, Rank: 1},
			{PlayerName: "Second", Total: 400, Rank: 2},
		},
	}
	data, contentType, err := PNGRenderer{}.Render(context.Background(), board)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if contentType != "image/png" {
		t.Errorf("content type %q", contentType)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not decodable png: %v", err)
	}
	if img.Bounds().Dx() != 600 || img.Bounds().Dy() != 48 {
		t.Errorf("unexpected dimensions %v", img.Bounds())
	}
}
