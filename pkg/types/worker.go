package types

import "time"

// WorkerStatus is the closed set of states a Worker Record may occupy.
type WorkerStatus string

const (
	WorkerStarting  WorkerStatus = "starting"
	WorkerWorking   WorkerStatus = "working"
	WorkerCompleted WorkerStatus = "completed"
	WorkerFailed    WorkerStatus = "failed"
	WorkerTimeout   WorkerStatus = "timeout"
)

// IsActive reports whether status belongs to the active table (starting or
// working). Terminal statuses are archived to history and never appear in
// get_active() results.
func (s WorkerStatus) IsActive() bool {
	return s == WorkerStarting || s == WorkerWorking
}

// IsTerminal reports whether status is a final, archived state.
func (s WorkerStatus) IsTerminal() bool {
	return s == WorkerCompleted || s == WorkerFailed || s == WorkerTimeout
}

// Worker is a Worker Record: one Minion dispatched against one issue.
// Created on dispatch with status Starting, mutated only by the Reporter
// Endpoint and the Watchdog, and archived into a WorkHistoryEntry on any
// terminal status transition.
type Worker struct {
	ID             string       `json:"id"`
	ContainerRef   string       `json:"container_ref"`
	Repo           string       `json:"repo"`
	IssueNumber    int          `json:"issue_number"`
	Status         WorkerStatus `json:"status"`
	StartedAt      time.Time    `json:"started_at"`
	LastHeartbeat  time.Time    `json:"last_heartbeat"`
	PRNumber       int          `json:"pr_number,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
}

// WorkHistoryEntry is an append-only archived Worker Record.
type WorkHistoryEntry struct {
	ID              string       `json:"id"`
	WorkerID        string       `json:"worker_id"`
	Repo            string       `json:"repo"`
	IssueNumber     int          `json:"issue_number"`
	PRNumber        int          `json:"pr_number,omitempty"`
	Status          WorkerStatus `json:"status"`
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     time.Time    `json:"completed_at"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	DurationSeconds int64        `json:"duration_seconds"`
}

// EvaluationOutcome is the closed set of overall evaluation outcomes.
type EvaluationOutcome string

const (
	EvaluationPass EvaluationOutcome = "pass"
	EvaluationFail EvaluationOutcome = "fail"
	EvaluationMixed EvaluationOutcome = "mixed"
)

// EvaluationRecord is an optional record emitted by an external evaluator
// after a worker's PR has been reviewed along three axes.
type EvaluationRecord struct {
	PRNumber       int               `json:"pr_number"`
	Repo           string            `json:"repo"`
	TestScore      string            `json:"test_score"`
	LintScore      string            `json:"lint_score"`
	ReviewScore    string            `json:"review_score"`
	Overall        EvaluationOutcome `json:"overall"`
	RevisionNumber int               `json:"revision_number"`
	Feedback       string            `json:"feedback,omitempty"`
	EvaluatedAt    time.Time         `json:"evaluated_at"`
}

// PendingQuestion is a blocked worker's request for human clarification,
// bound to a chat thread. Owned exclusively by the Pending-Question
// Registry; workers only ever observe it through the answer-poll endpoint.
type PendingQuestion struct {
	MinionID     string    `json:"minion_id"`
	QuestionID   string    `json:"question_id"`
	IssueNumber  int       `json:"issue_number"`
	Repo         string    `json:"repo"`
	QuestionText string    `json:"question_text"`
	ThreadRef    string    `json:"thread_ref"`
	Answered     bool      `json:"answered"`
	Answer       string    `json:"answer,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// QueueItem is a ready-to-work issue surfaced by a queue scan. Transient:
// never persisted, produced fresh by each Queue Scanner.scan() call.
type QueueItem struct {
	Repo     string
	Number   int
	Title    string
	Priority int
	Age      time.Duration
}

// RateLimit reports the issue-queue provider's API budget.
type RateLimit struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}
