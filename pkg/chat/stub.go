package chat

import (
	"context"
	"fmt"
	"sync"
)

// StubAdapter implements Adapter in memory, for tests that exercise the
// Orchestrator without a real Slack connection.
type StubAdapter struct {
	mu       sync.Mutex
	handlers Handlers
	seq      int
	Posted   []StubPost
	threads  map[string][]string
}

// StubPost records a single Post/PostQuestion call.
type StubPost struct {
	Text      string
	ThreadRef string
}

// NewStubAdapter returns a StubAdapter wired to handlers.
func NewStubAdapter(handlers Handlers) *StubAdapter {
	return &StubAdapter{handlers: handlers, threads: make(map[string][]string)}
}

func (s *StubAdapter) Start(ctx context.Context) error { <-ctx.Done(); return nil }

func (s *StubAdapter) Stop() error { return nil }

func (s *StubAdapter) Post(ctx context.Context, text, threadRef string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if threadRef == "" {
		s.seq++
		threadRef = fmt.Sprintf("stub-thread-%d", s.seq)
	}
	s.Posted = append(s.Posted, StubPost{Text: text, ThreadRef: threadRef})
	return threadRef, nil
}

func (s *StubAdapter) PostQuestion(ctx context.Context, minionID string, issue int, text string) (string, error) {
	return s.Post(ctx, fmt.Sprintf("minion %s #%d: %s", minionID, issue, text), "")
}

func (s *StubAdapter) ThreadHistory(ctx context.Context, threadRef string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.threads[threadRef]...), nil
}

// SimulateChannelMessage feeds text through the Command Parser handler as if
// it arrived in the configured channel, returning the handler's reply text.
// The reply is not posted, so it does not appear in Posted.
func (s *StubAdapter) SimulateChannelMessage(ctx context.Context, text string) string {
	if s.handlers.OnCommand == nil {
		return ""
	}
	return s.handlers.OnCommand(ctx, text)
}

// SimulateThreadReply feeds a reply through the thread-reply handler and
// records it in thread history.
func (s *StubAdapter) SimulateThreadReply(ctx context.Context, threadRef, text string) {
	s.mu.Lock()
	s.threads[threadRef] = append(s.threads[threadRef], text)
	handler := s.handlers.OnThreadReply
	s.mu.Unlock()
	if handler != nil {
		handler(ctx, threadRef, text)
	}
}
