package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// StubRuntime implements Runtime entirely in memory, for tests and for
// STUB_MODE deployments that want to exercise the rest of the Overlord
// without a real containerd daemon. Every operation succeeds; Status
// tracks a tiny state machine seeded by Spawn, moved to exited by Kill, and
// cleared for exited containers by CleanupDead.
type StubRuntime struct {
	mu        sync.Mutex
	available bool
	states    map[string]Status
}

// NewStubRuntime returns a StubRuntime that reports itself available.
func NewStubRuntime() *StubRuntime {
	return &StubRuntime{
		available: true,
		states:    make(map[string]Status),
	}
}

// SetAvailable lets tests simulate a runtime outage.
func (r *StubRuntime) SetAvailable(available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = available
}

func (r *StubRuntime) Available(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

func (r *StubRuntime) EnsureNetwork(ctx context.Context) error {
	return nil
}

func (r *StubRuntime) Spawn(ctx context.Context, req SpawnRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.available {
		return "", fmt.Errorf("runtime: stub runtime unavailable")
	}
	id := "stub-minion-" + uuid.NewString()
	r.states[id] = StatusRunning
	return id, nil
}

func (r *StubRuntime) Status(ctx context.Context, id string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.states[id]
	if !ok {
		return StatusNone, nil
	}
	return status, nil
}

func (r *StubRuntime) Logs(ctx context.Context, id string, tail int) (string, error) {
	return "", nil
}

func (r *StubRuntime) Kill(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = StatusExited
	return nil
}

func (r *StubRuntime) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *StubRuntime) CleanupDead(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, status := range r.states {
		if status == StatusExited {
			delete(r.states, id)
			count++
		}
	}
	return count, nil
}

func (r *StubRuntime) SyncActive(ctx context.Context, activeIDs []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []string
	for _, id := range activeIDs {
		if r.states[id] != StatusRunning {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

func (r *StubRuntime) Close() error {
	return nil
}
