package overlord

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/overlord/pkg/types"
)

func testConfig(t *testing.T) *types.Config {
	t.Helper()
	return &types.Config{
		MaxConcurrent:    2,
		HealthPort:       0,
		HeartbeatTimeout: time.Minute,
		WatchdogInterval: time.Hour,
		CleanupInterval:  time.Hour,
		StateDB:          filepath.Join(t.TempDir(), "state.db"),
		ContainerImage:   "overlord/minion:test",
		StubMode:         true,
		DefaultRepo:      "acme/widgets",
		QuestionTTL:      time.Hour,
		CronEnabled:      false,
	}
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { o.store.Close() })
	return o
}

func TestDispatchSucceedsAndInsertsWorker(t *testing.T) {
	o := newTestOrchestrator(t)

	id, err := o.Dispatch(context.Background(), "acme/widgets", 42)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty worker id")
	}

	w, err := o.store.GetByIssue("acme/widgets", 42)
	if err != nil {
		t.Fatalf("GetByIssue: %v", err)
	}
	if w.Status != types.WorkerStarting {
		t.Fatalf("status = %s, want starting", w.Status)
	}
}

func TestDispatchRejectsDuplicateActiveIssue(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := o.Dispatch(ctx, "acme/widgets", 1); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if _, err := o.Dispatch(ctx, "acme/widgets", 1); err != ErrAlreadyActive {
		t.Fatalf("second dispatch error = %v, want ErrAlreadyActive", err)
	}
}

func TestDispatchRejectsAtConcurrencyCap(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := o.Dispatch(ctx, "acme/widgets", 1); err != nil {
		t.Fatalf("dispatch 1: %v", err)
	}
	if _, err := o.Dispatch(ctx, "acme/widgets", 2); err != nil {
		t.Fatalf("dispatch 2: %v", err)
	}
	if _, err := o.Dispatch(ctx, "acme/widgets", 3); err != ErrConcurrencyCap {
		t.Fatalf("dispatch 3 error = %v, want ErrConcurrencyCap", err)
	}
}

func TestStopWorkerArchivesAsManuallyStopped(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	id, err := o.Dispatch(ctx, "acme/widgets", 7)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	w, err := o.store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := o.StopWorker(ctx, w); err != nil {
		t.Fatalf("StopWorker: %v", err)
	}

	if _, err := o.store.Get(id); err == nil {
		t.Fatal("expected worker to be archived out of the active table")
	}
}

func TestHandleCommandWorkAndStatusAndHelp(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	reply := o.HandleCommand(ctx, "work acme/widgets#9")
	if !contains(reply, "started") {
		t.Fatalf("work reply = %q, want it to mention started", reply)
	}

	status := o.HandleCommand(ctx, "status")
	if !contains(status, "Active workers: 1/2") {
		t.Fatalf("status reply = %q, want active worker count", status)
	}

	help := o.HandleCommand(ctx, "help")
	if !contains(help, "Commands:") {
		t.Fatalf("help reply = %q, want command listing", help)
	}

	unknown := o.HandleCommand(ctx, "do a backflip")
	if !contains(unknown, "didn't understand") {
		t.Fatalf("unknown reply = %q, want a didn't-understand message", unknown)
	}
}

func TestHandleCommandStopByIssueNumber(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.HandleCommand(ctx, "work acme/widgets#11")
	reply := o.HandleCommand(ctx, "stop acme/widgets#11")
	if !contains(reply, "stopped") {
		t.Fatalf("stop reply = %q, want stopped", reply)
	}

	if _, err := o.store.GetByIssue("acme/widgets", 11); err == nil {
		t.Fatal("expected worker archived after stop")
	}
}

func TestHandlePauseResume(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	if o.Paused() {
		t.Fatal("expected not paused initially")
	}
	o.HandleCommand(ctx, "pause")
	if !o.Paused() {
		t.Fatal("expected paused after pause command")
	}
	o.HandleCommand(ctx, "resume")
	if o.Paused() {
		t.Fatal("expected not paused after resume command")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
