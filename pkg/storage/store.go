package storage

import (
	"github.com/cuemby/overlord/pkg/types"
)

// HistoryFilter narrows a History query. A zero value matches everything.
type HistoryFilter struct {
	Repo   string
	Status types.WorkerStatus
	Limit  int
}

// Store is the State Store contract: one embedded transactional store with
// three logical tables (active workers, work history, evaluations). All
// mutating operations serialise; reads observe the last committed state.
type Store interface {
	// AddWorker inserts a new active Worker Record. Returns ErrDuplicateActive
	// if a worker is already active for (w.Repo, w.IssueNumber).
	AddWorker(w *types.Worker) error

	// UpdateWorker overwrites the active worker record for id. Returns
	// ErrNotFound if id is not currently active.
	UpdateWorker(w *types.Worker) error

	// GetActive returns every currently active worker, in no particular order.
	GetActive() ([]*types.Worker, error)

	// GetByIssue looks up the active worker for (repo, number), if any.
	// Returns ErrNotFound if none exists.
	GetByIssue(repo string, number int) (*types.Worker, error)

	// Get looks up an active worker by id. Returns ErrNotFound if not active.
	Get(id string) (*types.Worker, error)

	// RecordCompletion atomically archives worker id into history and
	// removes it from the active table. Idempotent: a second call for the
	// same id returns ErrAlreadyArchived and makes no further change.
	RecordCompletion(id string, status types.WorkerStatus, prNumber int, errMsg string) error

	// History returns archived work in reverse-chronological order,
	// narrowed by filter.
	History(filter HistoryFilter) ([]*types.WorkHistoryEntry, error)

	// DistinctRepos returns the set of repos that have ever had an active
	// or archived worker.
	DistinctRepos() ([]string, error)

	// SaveEvaluation stores an evaluation record.
	SaveEvaluation(e *types.EvaluationRecord) error

	// Evaluations returns evaluation records for (repo, prNumber), oldest
	// revision first.
	Evaluations(repo string, prNumber int) ([]*types.EvaluationRecord, error)

	// Close releases the underlying database handle.
	Close() error
}
