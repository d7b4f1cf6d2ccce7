// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/dedupe"
	"github.com/lootledger/lootledger/internal/leaderboard"
	"github.com/lootledger/lootledger/internal/models"
	"github.com/lootledger/lootledger/internal/scoring"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []*models.Event
}

func (c *capturePublisher) PublishEvent(event *models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type pipeline struct {
	db        *database.DB
	processor *Processor
	publisher *capturePublisher
	cfg       *config.Config
}

func newPipeline(t *testing.T, mutate func(*config.Config)) *pipeline {
	t.Helper()
	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Ingest: config.IngestConfig{
			Workers:           4,
			QueueSize:         64,
			SubmissionTimeout: 10 * time.Second,
			MaxQuantity:       65535,
			MaxValue:          2147483647,
			ClockSkew:         5 * time.Minute,
			AutoRegister:      true,
		},
		Dedupe:  config.DedupeConfig{Retention: time.Hour},
		Scoring: config.ScoringConfig{PointsDivisor: 100},
	}
	if mutate != nil {
		mutate(cfg)
	}

	publisher := &capturePublisher{}
	deduper := dedupe.New(db, cfg.Dedupe.Retention)
	processor := NewProcessor(
		db,
		NewNormalizer(db, &cfg.Ingest),
		deduper,
		scoring.NewEngine(),
		nil,
		publisher,
		cfg,
	)
	return &pipeline{db: db, processor: processor, publisher: publisher, cfg: cfg}
}

func rawDrop(submissionID string, value int64) *models.RawSubmission {
	return &models.RawSubmission{
		Type:         "drop",
		Player:       "Zezima",
		AccountHash:  "hash-zezima",
		Source:       "Vorkath",
		ItemID:       22006,
		ItemName:     "Skeletal visage",
		Quantity:     1,
		Value:        value,
		SubmissionID: submissionID,
		OccurredAt:   time.Now().UTC().Add(-time.Second),
	}
}

func (p *pipeline) addGroupWithMember(t *testing.T, cfg *models.GroupConfig) int64 {
	t.Helper()
	ctx := context.Background()
	g, err := p.db.CreateGroup(ctx, "Clan", cfg)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	player, err := p.db.CreatePlayer(ctx, "hash-zezima", "Zezima")
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := p.db.AddGroupMember(ctx, g.ID, player.ID); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}
	return g.ID
}

func TestProcessScenario(t *testing.T) {
	// The canonical flow: a 1000-value drop under "1 point per 100 value"
	// commits one event worth 10 points and moves the current boards by 10.
	p := newPipeline(t, nil)
	groupID := p.addGroupWithMember(t, &models.GroupConfig{PointsDivisor: 100})
	ctx := context.Background()

	resp := p.processor.Process(ctx, rawDrop("sub-42", 1000))
	if resp.Outcome != models.OutcomeAccepted {
		t.Fatalf("got outcome %s (%s), want accepted", resp.Outcome, resp.Message)
	}
	if resp.Points != 10 || resp.EventID == nil {
		t.Errorf("got points=%d event_id=%v, want 10 and an id", resp.Points, resp.EventID)
	}

	period, err := leaderboard.CurrentPeriod(models.PeriodMonthly, time.Now().UTC())
	if err != nil {
		t.Fatalf("CurrentPeriod: %v", err)
	}
	entries, err := p.db.TopEntries(ctx, groupID, period, 10)
	if err != nil {
		t.Fatalf("TopEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Total != 10 {
		t.Fatalf("leaderboard got %+v, want one entry with total 10", entries)
	}
	if p.publisher.count() != 1 {
		t.Errorf("published %d events, want 1", p.publisher.count())
	}
}

func TestProcessDuplicateFingerprint(t *testing.T) {
	p := newPipeline(t, nil)
	groupID := p.addGroupWithMember(t, &models.GroupConfig{PointsDivisor: 100})
	ctx := context.Background()

	first := p.processor.Process(ctx, rawDrop("sub-1", 1000))
	if first.Outcome != models.OutcomeAccepted {
		t.Fatalf("first: %s", first.Outcome)
	}
	second := p.processor.Process(ctx, rawDrop("sub-1", 1000))
	if second.Outcome != models.OutcomeDuplicate {
		t.Fatalf("second: got %s, want duplicate", second.Outcome)
	}

	period, _ := leaderboard.CurrentPeriod(models.PeriodAllTime, time.Now().UTC())
	entries, err := p.db.TopEntries(ctx, groupID, period, 10)
	if err != nil {
		t.Fatalf("TopEntries: %v", err)
	}
	if entries[0].Total != 10 {
		t.Errorf("duplicate changed the board: total=%d", entries[0].Total)
	}
}

func TestProcessConcurrentSameFingerprint(t *testing.T) {
	p := newPipeline(t, nil)
	p.addGroupWithMember(t, &models.GroupConfig{PointsDivisor: 100})

	const n = 16
	var wg sync.WaitGroup
	outcomes := make([]models.SubmitOutcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = p.processor.Process(context.Background(), rawDrop("sub-race", 1000)).Outcome
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, o := range outcomes {
		switch o {
		case models.OutcomeAccepted:
			accepted++
		case models.OutcomeDuplicate:
		default:
			t.Errorf("unexpected outcome %s", o)
		}
	}
	if accepted != 1 {
		t.Errorf("%d submissions accepted, want exactly 1", accepted)
	}
	if p.publisher.count() != 1 {
		t.Errorf("published %d events, want 1", p.publisher.count())
	}
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	p := newPipeline(t, nil)
	raw := rawDrop("sub-bad", 1000)
	raw.Player = ""

	resp := p.processor.Process(context.Background(), raw)
	if resp.Outcome != models.OutcomeRejected || resp.ReasonCode != ReasonInvalidPayload {
		t.Errorf("got %s/%s, want rejected/%s", resp.Outcome, resp.ReasonCode, ReasonInvalidPayload)
	}
	if p.publisher.count() != 0 {
		t.Error("rejected submission was published")
	}
}

func TestProcessRejectsUnknownKind(t *testing.T) {
	p := newPipeline(t, nil)
	raw := rawDrop("sub-kind", 1000)
	raw.Type = "jackpot"

	resp := p.processor.Process(context.Background(), raw)
	if resp.Outcome != models.OutcomeRejected || resp.ReasonCode != ReasonUnknownKind {
		t.Errorf("got %s/%s, want rejected/%s", resp.Outcome, resp.ReasonCode, ReasonUnknownKind)
	}
}

func TestProcessRejectsUnknownAccountWhenAutoRegisterOff(t *testing.T) {
	p := newPipeline(t, func(c *config.Config) { c.Ingest.AutoRegister = false })

	resp := p.processor.Process(context.Background(), rawDrop("sub-unk", 1000))
	if resp.Outcome != models.OutcomeRejected || resp.ReasonCode != ReasonUnknownAccount {
		t.Errorf("got %s/%s, want rejected/%s", resp.Outcome, resp.ReasonCode, ReasonUnknownAccount)
	}
}

func TestProcessAutoRegistersPlayer(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	resp := p.processor.Process(ctx, rawDrop("sub-new", 1000))
	if resp.Outcome != models.OutcomeAccepted {
		t.Fatalf("got %s, want accepted", resp.Outcome)
	}

	player, err := p.db.GetPlayerByAccountHash(ctx, "hash-zezima")
	if err != nil {
		t.Fatalf("player not created: %v", err)
	}
	if player.Name != "Zezima" || player.EventCount != 1 {
		t.Errorf("auto-registered player %+v", player)
	}
}

func TestProcessRecordsRename(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	if resp := p.processor.Process(ctx, rawDrop("sub-a", 1000)); resp.Outcome != models.OutcomeAccepted {
		t.Fatalf("first: %s", resp.Outcome)
	}
	renamed := rawDrop("sub-b", 1000)
	renamed.Player = "Lynx Titan"
	if resp := p.processor.Process(ctx, renamed); resp.Outcome != models.OutcomeAccepted {
		t.Fatalf("second: %s", resp.Outcome)
	}

	player, err := p.db.GetPlayerByAccountHash(ctx, "hash-zezima")
	if err != nil {
		t.Fatalf("GetPlayerByAccountHash: %v", err)
	}
	if player.Name != "Lynx Titan" {
		t.Errorf("rename not recorded: %q", player.Name)
	}
}

func TestProcessClampsQuantityAndValue(t *testing.T) {
	p := newPipeline(t, func(c *config.Config) {
		c.Ingest.MaxQuantity = 100
		c.Ingest.MaxValue = 1_000_000
	})
	p.addGroupWithMember(t, &models.GroupConfig{PointsDivisor: 100})
	ctx := context.Background()

	raw := rawDrop("sub-clamp", 5_000_000)
	raw.Quantity = 10_000
	resp := p.processor.Process(ctx, raw)
	if resp.Outcome != models.OutcomeAccepted {
		t.Fatalf("got %s", resp.Outcome)
	}

	event, err := p.db.GetEvent(ctx, resp.EventID.String())
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if event.Quantity != 100 || event.Value != 1_000_000 {
		t.Errorf("clamps not applied: qty=%d value=%d", event.Quantity, event.Value)
	}
}

func TestProcessRejectsFutureTimestamp(t *testing.T) {
	p := newPipeline(t, nil)
	raw := rawDrop("sub-future", 1000)
	raw.OccurredAt = time.Now().UTC().Add(time.Hour)

	resp := p.processor.Process(context.Background(), raw)
	if resp.Outcome != models.OutcomeRejected || resp.ReasonCode != ReasonStaleTimestamp {
		t.Errorf("got %s/%s, want rejected/%s", resp.Outcome, resp.ReasonCode, ReasonStaleTimestamp)
	}
}

func TestProcessHighValueVerification(t *testing.T) {
	p := newPipeline(t, nil)
	p.addGroupWithMember(t, &models.GroupConfig{
		PointsDivisor:    100,
		VerifyAboveValue: 1_000_000,
	})
	p.processor.verifier = NewStaticVerifier(map[string][]int64{
		"Vorkath": {22006, 21907},
	})
	ctx := context.Background()

	// A high-value item Vorkath actually drops commits fine.
	if resp := p.processor.Process(ctx, rawDrop("sub-real", 50_000_000)); resp.Outcome != models.OutcomeAccepted {
		t.Fatalf("legitimate drop: got %s (%s)", resp.Outcome, resp.Message)
	}

	// A forged high-value item is rejected.
	forged := rawDrop("sub-forged", 50_000_000)
	forged.ItemID = 11802
	resp := p.processor.Process(ctx, forged)
	if resp.Outcome != models.OutcomeRejected || resp.ReasonCode != ReasonUnverifiedDrop {
		t.Errorf("forged drop: got %s/%s, want rejected/%s", resp.Outcome, resp.ReasonCode, ReasonUnverifiedDrop)
	}

	// Below the threshold the verifier does not run.
	cheap := rawDrop("sub-cheap", 1000)
	cheap.ItemID = 11802
	if resp := p.processor.Process(ctx, cheap); resp.Outcome != models.OutcomeAccepted {
		t.Errorf("cheap unverified drop: got %s, want accepted", resp.Outcome)
	}
}

func TestProcessRejectionReleasesReservation(t *testing.T) {
	p := newPipeline(t, nil)
	p.addGroupWithMember(t, &models.GroupConfig{
		PointsDivisor:    100,
		VerifyAboveValue: 1_000_000,
	})
	p.processor.verifier = NewStaticVerifier(map[string][]int64{"Vorkath": {22006}})
	ctx := context.Background()

	forged := rawDrop("sub-retry", 50_000_000)
	forged.ItemID = 99999
	if resp := p.processor.Process(ctx, forged); resp.Outcome != models.OutcomeRejected {
		t.Fatalf("got %s, want rejected", resp.Outcome)
	}

	// A rejection releases its reservation instead of committing it, so an
	// unchanged resubmission is rejected again rather than reported as a
	// duplicate of a committed event.
	if resp := p.processor.Process(ctx, forged); resp.Outcome != models.OutcomeRejected {
		t.Errorf("resubmit after rejection: got %s, want rejected", resp.Outcome)
	}
}

func TestPoolProcessesSubmissions(t *testing.T) {
	p := newPipeline(t, nil)
	p.addGroupWithMember(t, &models.GroupConfig{PointsDivisor: 100})

	pool := NewPool(p.processor, 4, 32)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var wg sync.WaitGroup
	accepted := make([]bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw := rawDrop("pool-sub-"+string(rune('a'+i)), 1000)
			resp := pool.Submit(context.Background(), raw)
			accepted[i] = resp.Outcome == models.OutcomeAccepted
		}(i)
	}
	wg.Wait()

	for i, ok := range accepted {
		if !ok {
			t.Errorf("submission %d not accepted", i)
		}
	}
}

func TestPoolQueueFullReturnsRetryLater(t *testing.T) {
	p := newPipeline(t, nil)
	// One-slot queue and no running workers: the second submit must bounce.
	pool := NewPool(p.processor, 1, 1)

	first := make(chan *models.SubmitResponse, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		first <- pool.Submit(ctx, rawDrop("q-1", 1000))
	}()

	// Wait for the first job to occupy the queue slot.
	time.Sleep(20 * time.Millisecond)
	resp := pool.Submit(context.Background(), rawDrop("q-2", 1000))
	if resp.Outcome != models.OutcomeRetryLater {
		t.Errorf("got %s, want retry_later on full queue", resp.Outcome)
	}
	<-first
}
