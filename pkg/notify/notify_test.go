package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/cuemby/overlord/pkg/chat"
)

func TestSendUrgentPostsImmediately(t *testing.T) {
	adapter := chat.NewStubAdapter(chat.Handlers{})
	m := NewManager(adapter, true, true)

	m.SendUrgent(context.Background(), "container runtime unavailable")

	if len(adapter.Posted) != 1 {
		t.Fatalf("expected 1 post, got %d", len(adapter.Posted))
	}
	if adapter.Posted[0].Text != "container runtime unavailable" {
		t.Fatalf("unexpected post text: %q", adapter.Posted[0].Text)
	}
}

func TestSendUrgentSuppressedWhenDisabled(t *testing.T) {
	adapter := chat.NewStubAdapter(chat.Handlers{})
	m := NewManager(adapter, false, true)

	m.SendUrgent(context.Background(), "should not post")

	if len(adapter.Posted) != 0 {
		t.Fatalf("expected no posts, got %d", len(adapter.Posted))
	}
}

func TestAccumulateAndSendDigest(t *testing.T) {
	adapter := chat.NewStubAdapter(chat.Handlers{})
	m := NewManager(adapter, true, true)

	m.Accumulate(Detection, "found flaky test in pkg/foo")
	m.Accumulate(Execution, "dispatched minion-1 on acme/widgets#42")
	m.Accumulate(HealthCheck, "llm warm-up ok")

	if got := m.BufferSize(); got != 3 {
		t.Fatalf("BufferSize = %d, want 3", got)
	}

	m.SendDigest(context.Background())

	if len(adapter.Posted) != 1 {
		t.Fatalf("expected 1 digest post, got %d", len(adapter.Posted))
	}
	digest := adapter.Posted[0].Text
	if !strings.Contains(digest, "1 detections") {
		t.Errorf("digest missing detection count: %s", digest)
	}
	if !strings.Contains(digest, "1 executed") {
		t.Errorf("digest missing execution count: %s", digest)
	}
	if !strings.Contains(digest, "1 health checks") {
		t.Errorf("digest missing health check count: %s", digest)
	}

	if m.BufferSize() != 0 {
		t.Fatalf("expected buffer cleared after digest, got %d", m.BufferSize())
	}
}

func TestSendDigestNoActivityIsNoop(t *testing.T) {
	adapter := chat.NewStubAdapter(chat.Handlers{})
	m := NewManager(adapter, true, true)

	m.SendDigest(context.Background())

	if len(adapter.Posted) != 0 {
		t.Fatalf("expected no digest post with no activity, got %d", len(adapter.Posted))
	}
}

func TestSendDigestCapsItemsPerCategory(t *testing.T) {
	adapter := chat.NewStubAdapter(chat.Handlers{})
	m := NewManager(adapter, true, true)

	for i := 0; i < 8; i++ {
		m.Accumulate(Execution, "event")
	}

	m.SendDigest(context.Background())

	digest := adapter.Posted[0].Text
	if !strings.Contains(digest, "... and 3 more") {
		t.Errorf("expected overflow note in digest: %s", digest)
	}
}
