package overlord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/overlord/pkg/events"
	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/notify"
	"github.com/cuemby/overlord/pkg/runtime"
	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
	"github.com/google/uuid"
)

// Dispatch runs the dispatch pipeline (spec.md §4.11): reject on an
// unavailable runtime, reject at the concurrency cap, reject if the issue
// already has an active worker, otherwise spawn a container and insert a
// Worker Record before marking the queue item in-progress. It satisfies
// cron.DispatchFunc and is also the target of chat WORK commands.
func (o *Orchestrator) Dispatch(ctx context.Context, repo string, issue int) (string, error) {
	if !o.runtime.Available(ctx) {
		metrics.DispatchesTotal.WithLabelValues("runtime_unavailable").Inc()
		metrics.UpdateComponent("runtime", false, "container runtime unavailable")
		return "", ErrRuntimeUnavailable
	}
	metrics.UpdateComponent("runtime", true, "")

	active, err := o.store.GetActive()
	if err != nil {
		return "", fmt.Errorf("dispatch: listing active workers: %w", err)
	}
	if len(active) >= o.cfg.MaxConcurrent {
		metrics.DispatchesTotal.WithLabelValues("concurrency_cap").Inc()
		return "", ErrConcurrencyCap
	}

	if _, err := o.store.GetByIssue(repo, issue); err == nil {
		metrics.DispatchesTotal.WithLabelValues("already_active").Inc()
		return "", ErrAlreadyActive
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("dispatch: checking existing worker: %w", err)
	}

	correlationID := uuid.NewString()
	containerRef, err := o.runtime.Spawn(ctx, runtime.SpawnRequest{
		Repo:          repo,
		IssueNumber:   issue,
		CallbackURL:   o.callbackURL(),
		CorrelationID: correlationID,
		LLMBaseURL:    o.cfg.LLMBaseURL,
		LLMModel:      o.cfg.LLMModel,
	})
	if err != nil {
		metrics.DispatchesTotal.WithLabelValues("spawn_failed").Inc()
		return "", fmt.Errorf("dispatch: spawn: %w", err)
	}

	minionID := "minion-" + uuid.NewString()
	now := time.Now()
	worker := &types.Worker{
		ID:            minionID,
		ContainerRef:  containerRef,
		Repo:          repo,
		IssueNumber:   issue,
		Status:        types.WorkerStarting,
		StartedAt:     now,
		LastHeartbeat: now,
	}
	if err := o.store.AddWorker(worker); err != nil {
		// Roll back the container we just spawned; best-effort per spec.md
		// §4.10's "failures in any step roll back the previous ones".
		if killErr := o.runtime.Kill(ctx, containerRef); killErr != nil {
			o.logger.Error().Err(killErr).Str("container_ref", containerRef).Msg("failed to roll back container after store insert failure")
		}
		metrics.DispatchesTotal.WithLabelValues("store_failed").Inc()
		return "", fmt.Errorf("dispatch: inserting worker record: %w", err)
	}

	if err := o.scanner.MarkInProgress(ctx, repo, issue); err != nil {
		o.logger.Warn().Err(err).Str("repo", repo).Int("issue", issue).Msg("failed to mark issue in-progress, continuing")
	}

	o.broker.Publish(&events.Event{
		Type:     events.WorkerDispatched,
		Message:  fmt.Sprintf("dispatched %s for %s#%d", minionID, repo, issue),
		Metadata: map[string]string{"minion_id": minionID, "repo": repo},
	})
	o.notify.Accumulate(notify.Execution, fmt.Sprintf("%s#%d dispatched as `%s`", repo, issue, minionID))
	metrics.DispatchesTotal.WithLabelValues("dispatched").Inc()

	o.logger.Info().Str("worker_id", minionID).Str("repo", repo).Int("issue", issue).Msg("dispatched worker")
	return minionID, nil
}

// StopWorker kills w's container and archives it as failed/"manually
// stopped", as spec.md §4.11 requires of STOP regardless of whether it was
// addressed by minion id or by issue number.
func (o *Orchestrator) StopWorker(ctx context.Context, w *types.Worker) error {
	if err := o.runtime.Kill(ctx, w.ContainerRef); err != nil {
		o.logger.Warn().Err(err).Str("worker_id", w.ID).Msg("failed to kill container on stop")
	}

	if err := o.store.RecordCompletion(w.ID, types.WorkerFailed, 0, "manually stopped"); err != nil {
		if !errors.Is(err, storage.ErrAlreadyArchived) {
			return fmt.Errorf("stop: archiving worker: %w", err)
		}
	}
	metrics.CompletionsTotal.WithLabelValues(string(types.WorkerFailed)).Inc()
	o.questions.Drop(w.ID)

	o.broker.Publish(&events.Event{
		Type:     events.WorkerFailed,
		Message:  "manually stopped",
		Metadata: map[string]string{"minion_id": w.ID},
	})
	o.notify.Accumulate(notify.Execution, fmt.Sprintf("%s#%d (minion `%s`): manually stopped", w.Repo, w.IssueNumber, w.ID))
	return nil
}
