package overlord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/overlord/pkg/command"
	"github.com/cuemby/overlord/pkg/events"
	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
)

// HandleCommand is the Chat Adapter's OnCommand callback. It parses text and
// dispatches through the handler table, mirroring the per-type dispatch the
// original Python's main.py built from its own handler map.
func (o *Orchestrator) HandleCommand(ctx context.Context, text string) string {
	cmd := o.parser.Parse(text)
	metrics.ChatCommandsTotal.WithLabelValues(string(cmd.Type)).Inc()

	handler, ok := o.cmdHandlers[cmd.Type]
	if !ok {
		handler = o.handleUnknownCommand
	}
	return handler(ctx, cmd)
}

// HandleThreadReply is the Chat Adapter's OnThreadReply callback: it records
// the reply as the answer to whichever pending question is bound to
// threadRef, if any.
func (o *Orchestrator) HandleThreadReply(ctx context.Context, threadRef, text string) {
	minionID := o.questions.AnswerByThreadRef(threadRef, text)
	if minionID == "" {
		return
	}
	o.logger.Info().Str("worker_id", minionID).Msg("pending question answered via thread reply")
	o.broker.Publish(&events.Event{
		Type:     events.QuestionAnswered,
		Message:  text,
		Metadata: map[string]string{"minion_id": minionID},
	})
}

func (o *Orchestrator) handleStatusCommand(ctx context.Context, cmd command.Command) string {
	active, err := o.store.GetActive()
	if err != nil {
		return fmt.Sprintf("could not read status: %v", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Paused: %v | Active workers: %d/%d | Pending questions: %d\n",
		o.Paused(), len(active), o.cfg.MaxConcurrent, len(o.questions.List()))
	for _, w := range active {
		fmt.Fprintf(&b, "  `%s` %s#%d — %s\n", w.ID, w.Repo, w.IssueNumber, w.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (o *Orchestrator) handleWorkCommand(ctx context.Context, cmd command.Command) string {
	repo := cmd.Repo
	if repo == "" {
		repo = o.cfg.DefaultRepo
	}
	if repo == "" || cmd.IssueNumber < 0 {
		return "usage: `work owner/repo#123` or `#123` with a default repo configured"
	}

	id, err := o.Dispatch(ctx, repo, cmd.IssueNumber)
	if err != nil {
		switch {
		case errors.Is(err, ErrRuntimeUnavailable):
			return "cannot start work: container runtime is unavailable"
		case errors.Is(err, ErrConcurrencyCap):
			return fmt.Sprintf("cannot start work: concurrency cap (%d) reached", o.cfg.MaxConcurrent)
		case errors.Is(err, ErrAlreadyActive):
			return fmt.Sprintf("%s#%d already has an active worker", repo, cmd.IssueNumber)
		default:
			return fmt.Sprintf("could not start work on %s#%d: %v", repo, cmd.IssueNumber, err)
		}
	}
	return fmt.Sprintf("started `%s` on %s#%d", id, repo, cmd.IssueNumber)
}

func (o *Orchestrator) handleStopCommand(ctx context.Context, cmd command.Command) string {
	worker, err := o.resolveStopTarget(cmd)
	if err != nil {
		return err.Error()
	}
	if stopErr := o.StopWorker(ctx, worker); stopErr != nil {
		return fmt.Sprintf("failed to stop `%s`: %v", worker.ID, stopErr)
	}
	return fmt.Sprintf("stopped `%s` (%s#%d)", worker.ID, worker.Repo, worker.IssueNumber)
}

func (o *Orchestrator) resolveStopTarget(cmd command.Command) (*types.Worker, error) {
	if cmd.MinionID != "" {
		w, err := o.store.Get(cmd.MinionID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("no active worker `%s`", cmd.MinionID)
		}
		if err != nil {
			return nil, fmt.Errorf("could not look up `%s`: %w", cmd.MinionID, err)
		}
		return w, nil
	}

	repo := cmd.Repo
	if repo == "" {
		repo = o.cfg.DefaultRepo
	}
	if repo == "" || cmd.IssueNumber < 0 {
		return nil, fmt.Errorf("usage: `stop minion-<id>` or `stop owner/repo#123`")
	}
	w, err := o.store.GetByIssue(repo, cmd.IssueNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s#%d has no active worker", repo, cmd.IssueNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("could not look up %s#%d: %w", repo, cmd.IssueNumber, err)
	}
	return w, nil
}

func (o *Orchestrator) handleQueueCommand(ctx context.Context, cmd command.Command) string {
	items := o.scanner.Scan(ctx)
	if len(items) == 0 {
		return "queue is empty"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d ready item(s):\n", len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "  %s#%d %s (priority %d)\n", item.Repo, item.Number, item.Title, item.Priority)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (o *Orchestrator) handlePauseCommand(ctx context.Context, cmd command.Command) string {
	o.SetPaused(true)
	return "queue paused — no new work will be dispatched until resumed"
}

func (o *Orchestrator) handleResumeCommand(ctx context.Context, cmd command.Command) string {
	o.SetPaused(false)
	return "queue resumed"
}

func (o *Orchestrator) handleHistoryCommand(ctx context.Context, cmd command.Command) string {
	entries, err := o.store.History(storage.HistoryFilter{Limit: 10})
	if err != nil {
		return fmt.Sprintf("could not read history: %v", err)
	}
	if len(entries) == 0 {
		return "no work history yet"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s#%d — %s (%s)\n", e.Repo, e.IssueNumber, e.Status, e.CompletedAt.Format("Jan 02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (o *Orchestrator) handleHelpCommand(ctx context.Context, cmd command.Command) string {
	return strings.TrimSpace(`
Commands:
  status            — active workers and pause state
  work owner/repo#N  — dispatch a worker for issue N (or "#N" with a default repo)
  stop minion-<id>   — stop a worker by id
  stop owner/repo#N  — stop the worker for issue N
  queue              — list ready-to-work items
  pause / resume     — toggle automatic dispatch
  history            — recent completed work
  help               — this message
`)
}

func (o *Orchestrator) handleUnknownCommand(ctx context.Context, cmd command.Command) string {
	return fmt.Sprintf("didn't understand %q — try `help`", cmd.Raw)
}
