package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/overlord/pkg/events"
	"github.com/cuemby/overlord/pkg/log"
	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/notify"
	"github.com/cuemby/overlord/pkg/runtime"
	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
	"github.com/rs/zerolog"
)

// logTail is how many lines of container output are captured when a
// container is found to have exited unexpectedly.
const logTail = 50

// Deps are the Watchdog's collaborators.
type Deps struct {
	Store            storage.Store
	Runtime          runtime.Runtime
	Notify           *notify.Manager
	Broker           *events.Broker
	HeartbeatTimeout time.Duration
	Interval         time.Duration
	StubMode         bool
}

// Watchdog runs the heartbeat-timeout and container-reconciliation passes.
type Watchdog struct {
	deps   Deps
	logger zerolog.Logger
	stopCh chan struct{}
}

// New returns a Watchdog wired to deps.
func New(deps Deps) *Watchdog {
	return &Watchdog{
		deps:   deps,
		logger: log.WithComponent("watchdog"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the watchdog loop.
func (wd *Watchdog) Start() {
	go wd.run()
}

// Stop halts the watchdog loop.
func (wd *Watchdog) Stop() {
	close(wd.stopCh)
}

func (wd *Watchdog) run() {
	ticker := time.NewTicker(wd.deps.Interval)
	defer ticker.Stop()

	wd.logger.Info().Msg("watchdog started")
	for {
		select {
		case <-ticker.C:
			wd.tick()
		case <-wd.stopCh:
			wd.logger.Info().Msg("watchdog stopped")
			return
		}
	}
}

func (wd *Watchdog) tick() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WatchdogCycleDuration)

	ctx := context.Background()
	wd.checkHeartbeats(ctx)
	wd.reconcileContainers(ctx)
}

// checkHeartbeats kills and archives every active worker whose last
// heartbeat is older than HeartbeatTimeout.
func (wd *Watchdog) checkHeartbeats(ctx context.Context) {
	active, err := wd.deps.Store.GetActive()
	if err != nil {
		wd.logger.Error().Err(err).Msg("failed to list active workers")
		return
	}

	now := time.Now()
	for _, w := range active {
		if now.Sub(w.LastHeartbeat) <= wd.deps.HeartbeatTimeout {
			continue
		}

		wd.logger.Warn().
			Str("worker_id", w.ID).
			Dur("since_last_heartbeat", now.Sub(w.LastHeartbeat)).
			Msg("worker heartbeat timed out, killing")

		if err := wd.deps.Runtime.Kill(ctx, w.ContainerRef); err != nil {
			wd.logger.Error().Err(err).Str("worker_id", w.ID).Msg("failed to kill timed-out worker")
		}

		metrics.WatchdogTimeoutsTotal.Inc()
		wd.archive(w, types.WorkerTimeout, "no heartbeat", events.WorkerTimeout)
	}
}

// reconcileContainers archives any active worker whose container has
// already exited or disappeared out from under it.
func (wd *Watchdog) reconcileContainers(ctx context.Context) {
	active, err := wd.deps.Store.GetActive()
	if err != nil {
		wd.logger.Error().Err(err).Msg("failed to list active workers")
		return
	}

	for _, w := range active {
		status, err := wd.deps.Runtime.Status(ctx, w.ContainerRef)
		if err != nil {
			wd.logger.Debug().Err(err).Str("worker_id", w.ID).Msg("could not inspect container")
			continue
		}

		switch status {
		case runtime.StatusExited:
			if logs, err := wd.deps.Runtime.Logs(ctx, w.ContainerRef, logTail); err == nil {
				wd.logger.Warn().Str("worker_id", w.ID).Str("logs", logs).Msg("container exited unexpectedly")
			}
			wd.archive(w, types.WorkerFailed, "container exited unexpectedly", events.WorkerFailed)

		case runtime.StatusNone:
			if wd.deps.StubMode {
				continue
			}
			wd.archive(w, types.WorkerFailed, "container not found", events.WorkerFailed)

		case runtime.StatusRunning:
			// healthy, nothing to do
		}
	}
}

func (wd *Watchdog) archive(w *types.Worker, status types.WorkerStatus, reason string, evt events.Type) {
	err := wd.deps.Store.RecordCompletion(w.ID, status, 0, reason)
	if err != nil && !errors.Is(err, storage.ErrAlreadyArchived) {
		wd.logger.Error().Err(err).Str("worker_id", w.ID).Msg("failed to archive worker")
		return
	}
	metrics.CompletionsTotal.WithLabelValues(string(status)).Inc()

	if wd.deps.Notify != nil {
		wd.deps.Notify.Accumulate(notify.Execution, fmt.Sprintf("%s#%d (minion `%s`): %s", w.Repo, w.IssueNumber, w.ID, reason))
	}
	if wd.deps.Broker != nil {
		wd.deps.Broker.Publish(&events.Event{
			Type:     evt,
			Message:  reason,
			Metadata: map[string]string{"minion_id": w.ID},
		})
	}
}
