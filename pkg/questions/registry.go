package questions

import (
	"sync"
	"time"

	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/types"
)

// sweepInterval is how often the TTL sweep scans for expired questions. It
// is independent of the configured TTL itself.
const sweepInterval = time.Minute

// Registry is the Pending-Question Registry: one entry per minion with an
// outstanding clarification request. Callers that mutate both a Worker
// Record and its question (e.g. the Reporter Endpoint handling a "question"
// event) must hold the same per-worker serialisation the State Store uses;
// the Registry only guarantees atomicity of its own map.
type Registry struct {
	mu  sync.Mutex
	qs  map[string]*types.PendingQuestion
	ttl time.Duration

	stopCh chan struct{}
}

// NewRegistry returns a Registry that evicts entries older than ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		qs:     make(map[string]*types.PendingQuestion),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
}

// Add registers a new pending question, replacing any prior entry for the
// same minion id.
func (r *Registry) Add(q types.PendingQuestion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := q
	r.qs[q.MinionID] = &cp
	metrics.PendingQuestions.Set(float64(len(r.qs)))
}

// Get returns the pending question for minionID, if any.
func (r *Registry) Get(minionID string) (types.PendingQuestion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.qs[minionID]
	if !ok {
		return types.PendingQuestion{}, false
	}
	return *q, true
}

// Answer records answer against minionID's question. It returns false if
// there is no pending question, or it has already been answered.
func (r *Registry) Answer(minionID, answer string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.qs[minionID]
	if !ok || q.Answered {
		return false
	}
	q.Answer = answer
	q.Answered = true
	return true
}

// AnswerByThreadRef records answer against whichever pending, unanswered
// question is bound to threadRef, used when a Slack thread reply arrives.
// It returns the matched minion id, or "" if none matched.
func (r *Registry) AnswerByThreadRef(threadRef, answer string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for minionID, q := range r.qs {
		if q.ThreadRef == threadRef && !q.Answered {
			q.Answer = answer
			q.Answered = true
			return minionID
		}
	}
	return ""
}

// Drop unconditionally removes minionID's entry, called when its worker
// completes or fails regardless of question state.
func (r *Registry) Drop(minionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.qs, minionID)
	metrics.PendingQuestions.Set(float64(len(r.qs)))
}

// List returns a snapshot of all pending questions.
func (r *Registry) List() []types.PendingQuestion {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.PendingQuestion, 0, len(r.qs))
	for _, q := range r.qs {
		out = append(out, *q)
	}
	return out
}

// Start launches the background TTL sweep.
func (r *Registry) Start() {
	go r.run()
}

// Stop halts the sweep.
func (r *Registry) Stop() {
	close(r.stopCh)
}

func (r *Registry) run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// sweep drops entries older than ttl, regardless of answered state.
func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-r.ttl)
	for id, q := range r.qs {
		if q.CreatedAt.Before(cutoff) {
			delete(r.qs, id)
		}
	}
	metrics.PendingQuestions.Set(float64(len(r.qs)))
}
