package queue

import (
	"context"

	"github.com/cuemby/overlord/pkg/types"
)

// Scanner is the Queue Scanner contract.
type Scanner interface {
	// Scan returns ready-to-work items across all watched repos, sorted by
	// priority descending, then by age descending so the oldest ready issue
	// within a priority band is dispatched first. Transient upstream
	// failures yield an empty slice and a logged warning, never an error to
	// the caller.
	Scan(ctx context.Context) []types.QueueItem

	MarkInProgress(ctx context.Context, repo string, number int) error
	MarkInReview(ctx context.Context, repo string, number int, prNumber int) error
	MarkFailed(ctx context.Context, repo string, number int, reason string) error

	RateLimit(ctx context.Context) types.RateLimit
}
