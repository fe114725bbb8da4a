package chat

import "context"

// Adapter is the Chat Adapter contract: outbound posting plus the inbound
// event routing the Orchestrator wires up via Handlers.
type Adapter interface {
	// Start begins consuming inbound events until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop shuts the adapter down.
	Stop() error

	// Post sends text, optionally as a threaded reply to threadRef, and
	// returns a new thread_ref unique and stable for the message's lifetime.
	Post(ctx context.Context, text, threadRef string) (string, error)

	// PostQuestion posts a question on behalf of a blocked worker and
	// returns the thread_ref replies will be correlated against.
	PostQuestion(ctx context.Context, minionID string, issue int, text string) (string, error)

	// ThreadHistory returns human-authored messages posted in reply to
	// threadRef, oldest first.
	ThreadHistory(ctx context.Context, threadRef string) ([]string, error)
}

// Handlers are the narrow callback set the Orchestrator injects into an
// Adapter; the adapter never reaches back into the Orchestrator directly.
type Handlers struct {
	// OnCommand is invoked for channel messages and mentions. It returns
	// the reply text to post back, or "" to post nothing.
	OnCommand func(ctx context.Context, text string) string

	// OnThreadReply is invoked when a reply arrives in a thread, with the
	// parent's thread_ref; matching it against an unanswered Pending
	// Question is left to the callee.
	OnThreadReply func(ctx context.Context, threadRef, text string)
}
