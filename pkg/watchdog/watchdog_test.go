package watchdog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/overlord/pkg/events"
	"github.com/cuemby/overlord/pkg/notify"
	"github.com/cuemby/overlord/pkg/runtime"
	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
)

type memStore struct {
	mu      sync.Mutex
	active  map[string]*types.Worker
	history []*types.WorkHistoryEntry
}

func newMemStore() *memStore {
	return &memStore{active: make(map[string]*types.Worker)}
}

func (m *memStore) AddWorker(w *types.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[w.ID] = w
	return nil
}

func (m *memStore) UpdateWorker(w *types.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[w.ID] = w
	return nil
}

func (m *memStore) GetActive() ([]*types.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Worker, 0, len(m.active))
	for _, w := range m.active {
		out = append(out, w)
	}
	return out, nil
}

func (m *memStore) GetByIssue(repo string, number int) (*types.Worker, error) {
	return nil, storage.ErrNotFound
}

func (m *memStore) Get(id string) (*types.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.active[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return w, nil
}

func (m *memStore) RecordCompletion(id string, status types.WorkerStatus, prNumber int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.active[id]
	if !ok {
		return storage.ErrAlreadyArchived
	}
	delete(m.active, id)
	m.history = append(m.history, &types.WorkHistoryEntry{
		ID: id, WorkerID: id, Repo: w.Repo, IssueNumber: w.IssueNumber,
		PRNumber: prNumber, Status: status, ErrorMessage: errMsg, CompletedAt: time.Now(),
	})
	return nil
}

func (m *memStore) History(filter storage.HistoryFilter) ([]*types.WorkHistoryEntry, error) {
	return m.history, nil
}

func (m *memStore) DistinctRepos() ([]string, error) { return nil, nil }

func (m *memStore) SaveEvaluation(e *types.EvaluationRecord) error { return nil }

func (m *memStore) Evaluations(repo string, prNumber int) ([]*types.EvaluationRecord, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

// fakeRuntime lets tests pin a container's Status directly, unlike
// runtime.StubRuntime which only models its own Spawn/Kill transitions.
type fakeRuntime struct {
	mu       sync.Mutex
	statuses map[string]runtime.Status
	killed   map[string]bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{statuses: make(map[string]runtime.Status), killed: make(map[string]bool)}
}

func (f *fakeRuntime) setStatus(id string, s runtime.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = s
}

func (f *fakeRuntime) Available(ctx context.Context) bool            { return true }
func (f *fakeRuntime) EnsureNetwork(ctx context.Context) error       { return nil }
func (f *fakeRuntime) Spawn(ctx context.Context, req runtime.SpawnRequest) (string, error) {
	return "container-1", nil
}
func (f *fakeRuntime) Status(ctx context.Context, id string) (runtime.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[id]
	if !ok {
		return runtime.StatusNone, nil
	}
	return s, nil
}
func (f *fakeRuntime) Logs(ctx context.Context, id string, tail int) (string, error) { return "", nil }
func (f *fakeRuntime) Kill(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed[id] = true
	return nil
}
func (f *fakeRuntime) List(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeRuntime) CleanupDead(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeRuntime) SyncActive(ctx context.Context, activeIDs []string) ([]string, error) {
	return nil, nil
}
func (f *fakeRuntime) Close() error { return nil }

func TestCheckHeartbeatsKillsAndArchivesStaleWorker(t *testing.T) {
	store := newMemStore()
	_ = store.AddWorker(&types.Worker{
		ID: "minion-1", ContainerRef: "container-1", Repo: "acme/widgets", IssueNumber: 42,
		Status: types.WorkerWorking, LastHeartbeat: time.Now().Add(-time.Hour),
	})
	rt := newFakeRuntime()
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	wd := New(Deps{
		Store: store, Runtime: rt, Notify: notify.NewManager(nil, true, true), Broker: broker,
		HeartbeatTimeout: time.Minute, Interval: time.Hour,
	})

	wd.checkHeartbeats(context.Background())

	if !rt.killed["container-1"] {
		t.Fatal("expected container to be killed")
	}
	if _, err := store.Get("minion-1"); err == nil {
		t.Fatal("expected worker archived out of active table")
	}
	if len(store.history) != 1 || store.history[0].Status != types.WorkerTimeout {
		t.Fatalf("history = %+v, want one timeout entry", store.history)
	}
}

func TestCheckHeartbeatsLeavesFreshWorkerAlone(t *testing.T) {
	store := newMemStore()
	_ = store.AddWorker(&types.Worker{
		ID: "minion-1", ContainerRef: "container-1", Repo: "acme/widgets", IssueNumber: 42,
		Status: types.WorkerWorking, LastHeartbeat: time.Now(),
	})
	rt := newFakeRuntime()

	wd := New(Deps{Store: store, Runtime: rt, HeartbeatTimeout: time.Minute, Interval: time.Hour})
	wd.checkHeartbeats(context.Background())

	if rt.killed["container-1"] {
		t.Fatal("fresh worker's container should not be killed")
	}
	if _, err := store.Get("minion-1"); err != nil {
		t.Fatal("fresh worker should remain active")
	}
}

func TestReconcileContainersArchivesExited(t *testing.T) {
	store := newMemStore()
	_ = store.AddWorker(&types.Worker{
		ID: "minion-1", ContainerRef: "container-1", Repo: "acme/widgets", IssueNumber: 42,
		Status: types.WorkerWorking, LastHeartbeat: time.Now(),
	})
	rt := newFakeRuntime()
	rt.setStatus("container-1", runtime.StatusExited)

	wd := New(Deps{Store: store, Runtime: rt, HeartbeatTimeout: time.Minute, Interval: time.Hour})
	wd.reconcileContainers(context.Background())

	entry := store.history[0]
	if entry.Status != types.WorkerFailed || entry.ErrorMessage != "container exited unexpectedly" {
		t.Fatalf("entry = %+v, want failed/container exited unexpectedly", entry)
	}
}

func TestReconcileContainersArchivesMissingUnlessStubMode(t *testing.T) {
	store := newMemStore()
	_ = store.AddWorker(&types.Worker{
		ID: "minion-1", ContainerRef: "container-1", Repo: "acme/widgets", IssueNumber: 42,
		Status: types.WorkerWorking, LastHeartbeat: time.Now(),
	})
	rt := newFakeRuntime() // no status set -> StatusNone

	wd := New(Deps{Store: store, Runtime: rt, HeartbeatTimeout: time.Minute, Interval: time.Hour, StubMode: true})
	wd.reconcileContainers(context.Background())
	if _, err := store.Get("minion-1"); err != nil {
		t.Fatal("stub mode should not archive missing containers")
	}

	wd2 := New(Deps{Store: store, Runtime: rt, HeartbeatTimeout: time.Minute, Interval: time.Hour, StubMode: false})
	wd2.reconcileContainers(context.Background())
	if _, err := store.Get("minion-1"); err == nil {
		t.Fatal("expected missing container to be archived outside stub mode")
	}
}
