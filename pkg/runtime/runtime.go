package runtime

import (
	"context"
	"time"
)

// Status is the closed set of states a container may be observed in.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusNone    Status = "none"
)

// SpawnRequest carries everything spawn needs to inject into a new minion
// container's environment.
type SpawnRequest struct {
	Repo            string
	IssueNumber     int
	CallbackURL     string
	CorrelationID   string
	LLMBaseURL      string
	LLMModel        string
	LLMAPIKey       string
}

// Runtime is the Container Runtime Adapter contract: spawn, inspect, and
// tear down minion containers. Every method must return promptly and report
// failure rather than block indefinitely — the Orchestrator treats runtime
// I/O as a suspension point, never holding a State Store lock across it.
type Runtime interface {
	// Available reports whether the runtime can currently accept spawn
	// calls. The Orchestrator's dispatch pipeline rejects new work when
	// this returns false, without calling Spawn.
	Available(ctx context.Context) bool

	// EnsureNetwork provisions (idempotently) whatever network a spawned
	// container needs to reach the Reporter Endpoint's callback URL.
	EnsureNetwork(ctx context.Context) error

	// Spawn starts a new minion container and returns its id. Spawn may
	// return before the container has actually begun running; the
	// Reporter Endpoint's first heartbeat is the actual liveness signal.
	Spawn(ctx context.Context, req SpawnRequest) (string, error)

	// Status reports the last-known state of container id.
	Status(ctx context.Context, id string) (Status, error)

	// Logs returns up to tail lines of recent output for container id.
	Logs(ctx context.Context, id string, tail int) (string, error)

	// Kill stops container id, SIGTERM then SIGKILL after a grace period.
	Kill(ctx context.Context, id string) error

	// List returns every container id the runtime currently knows about.
	List(ctx context.Context) ([]string, error)

	// CleanupDead removes exited containers and returns the count removed.
	CleanupDead(ctx context.Context) (int, error)

	// SyncActive reconciles a set of ids the State Store believes are
	// active against what the runtime actually has running, returning the
	// subset that are NOT currently running (and so should be archived).
	SyncActive(ctx context.Context, activeIDs []string) ([]string, error)

	// Close releases any runtime client resources.
	Close() error
}

// DefaultKillGrace is how long Kill waits after SIGTERM before SIGKILL.
const DefaultKillGrace = 10 * time.Second
