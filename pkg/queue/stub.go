package queue

import (
	"context"
	"strconv"
	"sync"

	"github.com/cuemby/overlord/pkg/types"
)

// StubScanner implements Scanner over an in-memory item list, for tests that
// exercise the dispatch pipeline without a real GitHub connection.
type StubScanner struct {
	mu     sync.Mutex
	items  []types.QueueItem
	inProg map[string]bool
	inRev  map[string]bool
	failed map[string]string
}

// NewStubScanner returns a StubScanner seeded with items.
func NewStubScanner(items []types.QueueItem) *StubScanner {
	return &StubScanner{
		items:  items,
		inProg: make(map[string]bool),
		inRev:  make(map[string]bool),
		failed: make(map[string]string),
	}
}

func key(repo string, number int) string {
	return repo + "#" + strconv.Itoa(number)
}

func (s *StubScanner) Scan(ctx context.Context) []types.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.QueueItem
	for _, item := range s.items {
		k := key(item.Repo, item.Number)
		if s.inProg[k] || s.inRev[k] {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (s *StubScanner) MarkInProgress(ctx context.Context, repo string, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProg[key(repo, number)] = true
	return nil
}

func (s *StubScanner) MarkInReview(ctx context.Context, repo string, number int, prNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inRev[key(repo, number)] = true
	return nil
}

func (s *StubScanner) MarkFailed(ctx context.Context, repo string, number int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[key(repo, number)] = reason
	return nil
}

func (s *StubScanner) RateLimit(ctx context.Context) types.RateLimit {
	return types.RateLimit{Remaining: 5000, Limit: 5000}
}
