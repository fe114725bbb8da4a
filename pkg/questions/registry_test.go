package questions

import (
	"testing"
	"time"

	"github.com/cuemby/overlord/pkg/types"
)

func newQuestion(minionID, threadRef string, createdAt time.Time) types.PendingQuestion {
	return types.PendingQuestion{
		MinionID:     minionID,
		QuestionID:   "q-" + minionID,
		IssueNumber:  42,
		Repo:         "acme/widgets",
		QuestionText: "which branch?",
		ThreadRef:    threadRef,
		CreatedAt:    createdAt,
	}
}

func TestRegistryAddGetAnswer(t *testing.T) {
	r := NewRegistry(time.Hour)
	r.Add(newQuestion("minion-1", "thread-1", time.Now()))

	q, ok := r.Get("minion-1")
	if !ok {
		t.Fatal("expected question to be present")
	}
	if q.Answered {
		t.Fatal("expected unanswered question")
	}

	if !r.Answer("minion-1", "main") {
		t.Fatal("expected Answer to succeed")
	}
	q, _ = r.Get("minion-1")
	if !q.Answered || q.Answer != "main" {
		t.Fatalf("got answered=%v answer=%q, want true/main", q.Answered, q.Answer)
	}

	if r.Answer("minion-1", "develop") {
		t.Fatal("expected second Answer to be rejected, already answered")
	}
}

func TestRegistryAnswerByThreadRef(t *testing.T) {
	r := NewRegistry(time.Hour)
	r.Add(newQuestion("minion-1", "thread-1", time.Now()))
	r.Add(newQuestion("minion-2", "thread-2", time.Now()))

	matched := r.AnswerByThreadRef("thread-2", "go ahead")
	if matched != "minion-2" {
		t.Fatalf("matched = %q, want minion-2", matched)
	}

	q, _ := r.Get("minion-1")
	if q.Answered {
		t.Fatal("minion-1's question should be untouched")
	}

	if again := r.AnswerByThreadRef("thread-2", "ignored"); again != "" {
		t.Fatalf("second reply to answered thread matched %q, want none", again)
	}
}

func TestRegistryDropUnconditional(t *testing.T) {
	r := NewRegistry(time.Hour)
	r.Add(newQuestion("minion-1", "thread-1", time.Now()))
	r.Drop("minion-1")
	if _, ok := r.Get("minion-1"); ok {
		t.Fatal("expected question to be dropped")
	}
}

func TestRegistrySweepDropsExpiredRegardlessOfAnswered(t *testing.T) {
	r := NewRegistry(time.Millisecond)
	r.Add(newQuestion("minion-1", "thread-1", time.Now().Add(-time.Hour)))
	r.Answer("minion-1", "main")

	r.sweep()

	if _, ok := r.Get("minion-1"); ok {
		t.Fatal("expected expired, answered question to be swept")
	}
}
