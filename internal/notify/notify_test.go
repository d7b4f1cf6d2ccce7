// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lootledger/lootledger/internal/models"
)

type memStore struct {
	mu    sync.Mutex
	tasks map[string]*models.NotificationTask
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]*models.NotificationTask)}
}

func (m *memStore) InsertTasks(_ context.Context, tasks []*models.NotificationTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		cp := *t
		m.tasks[t.ID.String()] = &cp
	}
	return nil
}

func (m *memStore) DueTasks(_ context.Context, limit int) ([]*models.NotificationTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var due []*models.NotificationTask
	for _, t := range m.tasks {
		if t.Status == models.TaskPending && !t.NextAttemptAt.After(now) {
			cp := *t
			due = append(due, &cp)
			if len(due) == limit {
				break
			}
		}
	}
	return due, nil
}

func (m *memStore) MarkTaskSent(_ context.Context, id string, attempts int) error {
	return m.set(id, models.TaskSent, attempts, "")
}

func (m *memStore) MarkTaskFailed(_ context.Context, id string, attempts int, lastError string) error {
	return m.set(id, models.TaskFailed, attempts, lastError)
}

func (m *memStore) MarkTaskSuppressed(_ context.Context, id string) error {
	return m.set(id, models.TaskSuppressed, 0, "rate limited")
}

func (m *memStore) set(id string, status models.TaskStatus, attempts int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	t.Status = status
	t.Attempts = attempts
	t.LastError = lastError
	return nil
}

func (m *memStore) RescheduleTask(_ context.Context, id string, attempts int, next time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != models.TaskPending {
		return errors.New("task not pending")
	}
	t.Attempts = attempts
	t.NextAttemptAt = next
	t.LastError = lastError
	return nil
}

func (m *memStore) byStatus(status models.TaskStatus) []*models.NotificationTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.NotificationTask
	for _, t := range m.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

type staticConfigs struct{ cfg *models.GroupConfig }

func (s *staticConfigs) GetGroupConfig(context.Context, int64) (*models.GroupConfig, error) {
	return s.cfg, nil
}

func dropEvent(value int64) *models.Event {
	return &models.Event{
		ID:         uuid.New(),
		Kind:       models.KindDrop,
		PlayerID:   1,
		PlayerName: "Zezima",
		GroupIDs:   []int64{1},
		Source:     "Vorkath",
		ItemName:   "Draconic visage",
		Quantity:   1,
		Value:      value,
		TotalValue: value,
		Points:     value / 100,
		OccurredAt: time.Now().UTC(),
	}
}

func groupConfig(destinations ...models.Destination) *models.GroupConfig {
	return &models.GroupConfig{
		GroupID:          1,
		Version:          1,
		MinValueToNotify: 10000,
		Destinations:     destinations,
	}
}

func dest(id string) models.Destination {
	return models.Destination{
		ID:         id,
		URL:        "https://discord.example/" + id,
		RateLimit:  100,
		RateWindow: time.Minute,
	}
}

func newTestFanout(store TaskStore, cfg *models.GroupConfig) *Fanout {
	return NewFanout(store, &staticConfigs{cfg: cfg}, 5, 10, time.Minute)
}

func TestFanoutValueThreshold(t *testing.T) {
	store := newMemStore()
	f := newTestFanout(store, groupConfig(dest("main")))
	ctx := context.Background()

	tasks, err := f.Process(ctx, dropEvent(50000))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != models.TaskPending {
		t.Fatalf("high-value drop: got %d tasks, want one pending", len(tasks))
	}

	tasks, err = f.Process(ctx, dropEvent(500))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("low-value drop produced %d tasks, want 0", len(tasks))
	}
}

func TestFanoutSendStacks(t *testing.T) {
	cfg := groupConfig(dest("main"))
	cfg.SendStacks = true
	f := newTestFanout(newMemStore(), cfg)

	// Unit value 500 misses the 10000 threshold but the stack clears it.
	event := dropEvent(500)
	event.Quantity = 30
	event.TotalValue = 15000

	tasks, err := f.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("stack over threshold produced %d tasks, want 1", len(tasks))
	}
}

func TestFanoutKindFilter(t *testing.T) {
	petsOnly := dest("pets")
	petsOnly.Kinds = []models.SubmissionKind{models.KindPet}
	f := newTestFanout(newMemStore(), groupConfig(petsOnly, dest("all")))
	ctx := context.Background()

	pet := dropEvent(0)
	pet.Kind = models.KindPet
	tasks, err := f.Process(ctx, pet)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// Pets carry no value and bypass the threshold on both destinations.
	if len(tasks) != 2 {
		t.Errorf("pet produced %d tasks, want 2", len(tasks))
	}

	tasks, err = f.Process(ctx, dropEvent(50000))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Destination != "https://discord.example/all" {
		t.Errorf("drop reached the pets-only destination: %+v", tasks)
	}
}

func TestFanoutDestinationMinValueOverridesGroup(t *testing.T) {
	picky := dest("picky")
	picky.MinValue = 1_000_000
	f := newTestFanout(newMemStore(), groupConfig(picky))

	tasks, err := f.Process(context.Background(), dropEvent(50000))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("destination min_value ignored: %d tasks", len(tasks))
	}
}

func TestFanoutRateLimitSuppresses(t *testing.T) {
	limited := dest("limited")
	limited.RateLimit = 3
	limited.RateWindow = time.Hour
	store := newMemStore()
	f := newTestFanout(store, groupConfig(limited))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := f.Process(ctx, dropEvent(50000)); err != nil {
			t.Fatalf("Process %d: %v", i, err)
		}
	}

	pending := store.byStatus(models.TaskPending)
	suppressed := store.byStatus(models.TaskSuppressed)
	if len(pending) != 3 || len(suppressed) != 2 {
		t.Errorf("got %d pending and %d suppressed, want 3 and 2", len(pending), len(suppressed))
	}
	for _, task := range suppressed {
		if task.ProcessedAt == nil {
			t.Error("suppressed task missing processed_at")
		}
	}
}

func TestFanoutUnthrottledWithoutRateConfig(t *testing.T) {
	unlimited := dest("unlimited")
	unlimited.RateLimit = 0
	unlimited.RateWindow = 0
	store := newMemStore()
	f := NewFanout(store, &staticConfigs{cfg: groupConfig(unlimited)}, 5, 0, 0)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := f.Process(ctx, dropEvent(50000)); err != nil {
			t.Fatalf("Process %d: %v", i, err)
		}
	}

	if got := len(store.byStatus(models.TaskPending)); got != 20 {
		t.Errorf("got %d pending tasks, want 20", got)
	}
	if got := len(store.byStatus(models.TaskSuppressed)); got != 0 {
		t.Errorf("got %d suppressed tasks, want 0", got)
	}
}

type scriptedDeliverer struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedDeliverer) Deliver(context.Context, string, []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.calls < len(s.errs) {
		err = s.errs[s.calls]
	}
	s.calls++
	return err
}

func insertPending(t *testing.T, store *memStore, maxAttempts int) *models.NotificationTask {
	t.Helper()
	now := time.Now().UTC()
	task := &models.NotificationTask{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		GroupID:       1,
		PlayerID:      1,
		Destination:   "https://discord.example/hook",
		Payload:       []byte(`{}`),
		Status:        models.TaskPending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: now.Add(-time.Second),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.InsertTasks(context.Background(), []*models.NotificationTask{task}); err != nil {
		t.Fatalf("InsertTasks: %v", err)
	}
	return task
}

func newTestDispatcher(store TaskStore, d Deliverer) *Dispatcher {
	return NewDispatcher(store, d, DispatcherConfig{
		Workers:     2,
		BackoffBase: time.Millisecond,
		BackoffMax:  time.Millisecond,
	})
}

func TestBackoffNeverExceedsMax(t *testing.T) {
	disp := NewDispatcher(newMemStore(), &scriptedDeliverer{}, DispatcherConfig{
		BackoffBase: time.Second,
		BackoffMax:  4 * time.Second,
	})
	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 100; i++ {
			if d := disp.backoff(attempt); d > 4*time.Second {
				t.Fatalf("attempt %d: backoff %v exceeds configured max", attempt, d)
			}
		}
	}
}

func TestDispatchSuccess(t *testing.T) {
	store := newMemStore()
	insertPending(t, store, 5)
	disp := newTestDispatcher(store, &scriptedDeliverer{})

	if err := disp.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	sent := store.byStatus(models.TaskSent)
	if len(sent) != 1 || sent[0].Attempts != 1 {
		t.Errorf("got %d sent tasks, want 1 with a single attempt", len(sent))
	}
}

func TestDispatchTransientFailureRetries(t *testing.T) {
	store := newMemStore()
	task := insertPending(t, store, 5)
	deliverer := &scriptedDeliverer{errs: []error{
		&transientError{err: errors.New("503")},
		nil,
	}}
	disp := newTestDispatcher(store, deliverer)
	ctx := context.Background()

	if err := disp.DispatchDue(ctx); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	pending := store.byStatus(models.TaskPending)
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("after transient failure: %d pending, attempts=%v", len(pending), pending)
	}

	// Force the retry due and dispatch again.
	store.mu.Lock()
	store.tasks[task.ID.String()].NextAttemptAt = time.Now().UTC().Add(-time.Second)
	store.mu.Unlock()

	if err := disp.DispatchDue(ctx); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if sent := store.byStatus(models.TaskSent); len(sent) != 1 || sent[0].Attempts != 2 {
		t.Errorf("retry did not succeed: %+v", sent)
	}
}

func TestDispatchExhaustedRetriesFailTerminally(t *testing.T) {
	store := newMemStore()
	task := insertPending(t, store, 2)
	deliverer := &scriptedDeliverer{errs: []error{
		&transientError{err: errors.New("503")},
		&transientError{err: errors.New("503")},
	}}
	disp := newTestDispatcher(store, deliverer)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		store.mu.Lock()
		store.tasks[task.ID.String()].NextAttemptAt = time.Now().UTC().Add(-time.Second)
		store.mu.Unlock()
		if err := disp.DispatchDue(ctx); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}

	failed := store.byStatus(models.TaskFailed)
	if len(failed) != 1 || failed[0].Attempts != 2 || failed[0].LastError == "" {
		t.Errorf("got failed=%+v, want one task with 2 attempts and a recorded error", failed)
	}
}

func TestDispatchNonTransientFailsImmediately(t *testing.T) {
	store := newMemStore()
	insertPending(t, store, 5)
	deliverer := &scriptedDeliverer{errs: []error{errors.New("destination rejected payload with 404")}}
	disp := newTestDispatcher(store, deliverer)

	if err := disp.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if failed := store.byStatus(models.TaskFailed); len(failed) != 1 || failed[0].Attempts != 1 {
		t.Errorf("non-transient error not terminal: %+v", failed)
	}
}

func TestHTTPDelivererStatusHandling(t *testing.T) {
	var status int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("got content type %q", ct)
		}
		w.WriteHeader(status)
	}))
	defer server.Close()

	d := NewHTTPDeliverer(time.Second)
	ctx := context.Background()

	status = http.StatusNoContent
	if err := d.Deliver(ctx, server.URL, []byte(`{}`)); err != nil {
		t.Errorf("2xx: %v", err)
	}

	status = http.StatusBadGateway
	err := d.Deliver(ctx, server.URL, []byte(`{}`))
	if err == nil || !IsTransientDelivery(err) {
		t.Errorf("5xx: got %v, want transient error", err)
	}

	status = http.StatusBadRequest
	err = d.Deliver(ctx, server.URL, []byte(`{}`))
	if err == nil || IsTransientDelivery(err) {
		t.Errorf("4xx: got %v, want terminal error", err)
	}
}
