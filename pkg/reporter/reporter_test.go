package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/overlord/pkg/chat"
	"github.com/cuemby/overlord/pkg/events"
	"github.com/cuemby/overlord/pkg/queue"
	"github.com/cuemby/overlord/pkg/questions"
	"github.com/cuemby/overlord/pkg/runtime"
	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
)

// memStore is a minimal in-memory storage.Store for reporter tests.
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
	if _, ok := m.active[w.ID]; !ok {
		return storage.ErrNotFound
	}
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
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.active {
		if w.Repo == repo && w.IssueNumber == number {
			return w, nil
		}
	}
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

func newTestServer() (*Server, *memStore, *chat.StubAdapter, *queue.StubScanner) {
	store := newMemStore()
	_ = store.AddWorker(&types.Worker{ID: "minion-1", Repo: "acme/widgets", IssueNumber: 42, Status: types.WorkerStarting, StartedAt: time.Now(), LastHeartbeat: time.Now()})

	chatAdapter := chat.NewStubAdapter(chat.Handlers{})
	scanner := queue.NewStubScanner(nil)
	broker := events.NewBroker()
	broker.Start()

	deps := Deps{
		Store:     store,
		Runtime:   runtime.NewStubRuntime(),
		Scanner:   scanner,
		Questions: questions.NewRegistry(time.Hour),
		Notify:    nil,
		Chat:      chatAdapter,
		Broker:    broker,
		Config:    &types.Config{MaxConcurrent: 2},
		Paused:    func() bool { return false },
	}
	return NewServer(deps, ":0"), store, chatAdapter, scanner
}

func doReport(t *testing.T, srv *Server, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/minion/report", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)
	return rec
}

func TestHandleHeartbeat(t *testing.T) {
	srv, store, _, _ := newTestServer()
	rec := doReport(t, srv, map[string]any{"minion_id": "minion-1", "event": "heartbeat"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	w, _ := store.Get("minion-1")
	if time.Since(w.LastHeartbeat) > time.Second {
		t.Fatalf("heartbeat not updated")
	}
}

func TestHandleUnknownMinionIs404(t *testing.T) {
	srv, _, _, _ := newTestServer()
	rec := doReport(t, srv, map[string]any{"minion_id": "nope", "event": "heartbeat"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleReportMissingFieldsIs400(t *testing.T) {
	srv, _, _, _ := newTestServer()
	rec := doReport(t, srv, map[string]any{"event": "heartbeat"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleQuestionThenAnswerRoundTrip(t *testing.T) {
	srv, _, chatAdapter, _ := newTestServer()
	rec := doReport(t, srv, map[string]any{"minion_id": "minion-1", "event": "question", "message": "Which branch?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(chatAdapter.Posted) != 1 {
		t.Fatalf("expected question posted to chat, got %d posts", len(chatAdapter.Posted))
	}
	threadRef := chatAdapter.Posted[0].ThreadRef

	answerReq := httptest.NewRequest(http.MethodGet, "/minion/answer/minion-1", nil)
	answerRec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(answerRec, answerReq)
	var before answerResponse
	_ = json.Unmarshal(answerRec.Body.Bytes(), &before)
	if before.Answered {
		t.Fatal("expected unanswered before reply")
	}

	chatAdapter.SimulateThreadReply(context.Background(), threadRef, "main")
	srv.deps.Questions.AnswerByThreadRef(threadRef, "main")

	answerRec2 := httptest.NewRecorder()
	srv.Mux().ServeHTTP(answerRec2, httptest.NewRequest(http.MethodGet, "/minion/answer/minion-1", nil))
	var after answerResponse
	_ = json.Unmarshal(answerRec2.Body.Bytes(), &after)
	if !after.Answered || after.Answer != "main" {
		t.Fatalf("got %+v, want answered=true answer=main", after)
	}
}

func TestHandleCompleteArchivesAndKillsContainer(t *testing.T) {
	srv, store, _, _ := newTestServer()
	rec := doReport(t, srv, map[string]any{
		"minion_id": "minion-1", "event": "complete",
		"data": map[string]string{"pr_number": "7"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, err := store.Get("minion-1"); err == nil {
		t.Fatal("expected worker archived out of active table")
	}
	if len(store.history) != 1 || store.history[0].PRNumber != 7 {
		t.Fatalf("history = %+v, want one entry with pr_number 7", store.history)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ActiveMinions != 1 {
		t.Fatalf("active_minions = %d, want 1", resp.ActiveMinions)
	}
}
