package storage

import "errors"

// Sentinel errors returned by Store operations. Callers match these with
// errors.Is; BoltStore always wraps the underlying bbolt/json error when one
// exists so the root cause is not lost.
var (
	// ErrDuplicateActive is returned by AddWorker when a worker is already
	// active for the same (repo, issue number) pair.
	ErrDuplicateActive = errors.New("storage: worker already active for this issue")

	// ErrNotFound is returned by UpdateWorker, Get and GetByIssue when no
	// matching active worker exists.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyArchived is returned by RecordCompletion when called a
	// second time for the same worker id. RecordCompletion must be callable
	// repeatedly under retry without side effects beyond the first call.
	ErrAlreadyArchived = errors.New("storage: worker already archived")
)
