package cron

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
)

type memStore struct {
	mu     sync.Mutex
	active []*types.Worker
}

func (m *memStore) AddWorker(w *types.Worker) error { return nil }
func (m *memStore) UpdateWorker(w *types.Worker) error { return nil }
func (m *memStore) GetActive() ([]*types.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, nil
}
func (m *memStore) GetByIssue(repo string, number int) (*types.Worker, error) {
	return nil, storage.ErrNotFound
}
func (m *memStore) Get(id string) (*types.Worker, error) { return nil, storage.ErrNotFound }
func (m *memStore) RecordCompletion(id string, status types.WorkerStatus, prNumber int, errMsg string) error {
	return nil
}
func (m *memStore) History(filter storage.HistoryFilter) ([]*types.WorkHistoryEntry, error) {
	return nil, nil
}
func (m *memStore) DistinctRepos() ([]string, error)              { return nil, nil }
func (m *memStore) SaveEvaluation(e *types.EvaluationRecord) error { return nil }
func (m *memStore) Evaluations(repo string, prNumber int) ([]*types.EvaluationRecord, error) {
	return nil, nil
}
func (m *memStore) Close() error { return nil }

type stubScanner struct {
	items []types.QueueItem
}

func (s *stubScanner) Scan(ctx context.Context) []types.QueueItem { return s.items }
func (s *stubScanner) MarkInProgress(ctx context.Context, repo string, number int) error {
	return nil
}
func (s *stubScanner) MarkInReview(ctx context.Context, repo string, number, prNumber int) error {
	return nil
}
func (s *stubScanner) MarkFailed(ctx context.Context, repo string, number int, reason string) error {
	return nil
}
func (s *stubScanner) RateLimit(ctx context.Context) types.RateLimit { return types.RateLimit{} }

func TestSweepDispatchesUpToAvailableSlots(t *testing.T) {
	store := &memStore{active: []*types.Worker{{ID: "minion-1"}}} // 1 active
	scanner := &stubScanner{items: []types.QueueItem{
		{Repo: "acme/widgets", Number: 1},
		{Repo: "acme/widgets", Number: 2},
		{Repo: "acme/widgets", Number: 3},
	}}

	var dispatched []int
	dispatch := func(ctx context.Context, repo string, issue int) (string, error) {
		dispatched = append(dispatched, issue)
		return fmt.Sprintf("minion-%d", issue), nil
	}

	sched, err := New("@daily", Deps{
		Scanner: scanner, Store: store, Dispatch: dispatch,
		MaxConcurrent: 3, Paused: func() bool { return false },
	})
	if err != nil {
		t.Fatal(err)
	}

	sched.Sweep(context.Background())

	if len(dispatched) != 2 {
		t.Fatalf("dispatched %v, want 2 items (3 cap - 1 active)", dispatched)
	}
}

func TestSweepSkippedWhenPaused(t *testing.T) {
	store := &memStore{}
	scanner := &stubScanner{items: []types.QueueItem{{Repo: "acme/widgets", Number: 1}}}
	called := false
	dispatch := func(ctx context.Context, repo string, issue int) (string, error) {
		called = true
		return "", nil
	}

	sched, err := New("@daily", Deps{
		Scanner: scanner, Store: store, Dispatch: dispatch,
		MaxConcurrent: 3, Paused: func() bool { return true },
	})
	if err != nil {
		t.Fatal(err)
	}
	sched.Sweep(context.Background())
	if called {
		t.Fatal("dispatch should not be called while paused")
	}
}

func TestSweepSkippedWhenNoAvailableSlots(t *testing.T) {
	store := &memStore{active: []*types.Worker{{ID: "m1"}, {ID: "m2"}}}
	scanner := &stubScanner{items: []types.QueueItem{{Repo: "acme/widgets", Number: 1}}}
	called := false
	dispatch := func(ctx context.Context, repo string, issue int) (string, error) {
		called = true
		return "", nil
	}

	sched, err := New("@daily", Deps{
		Scanner: scanner, Store: store, Dispatch: dispatch,
		MaxConcurrent: 2, Paused: func() bool { return false },
	})
	if err != nil {
		t.Fatal(err)
	}
	sched.Sweep(context.Background())
	if called {
		t.Fatal("dispatch should not be called with zero available slots")
	}
}

func TestSleepUntilReturnsFalseOnStop(t *testing.T) {
	sched, err := New("@daily", Deps{MaxConcurrent: 1})
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan bool, 1)
	go func() {
		done <- sched.sleepUntil(time.Now().Add(time.Hour))
	}()
	close(sched.stopCh)
	if ok := <-done; ok {
		t.Fatal("expected sleepUntil to return false when stopped")
	}
}
