package overlord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/overlord/pkg/chat"
	"github.com/cuemby/overlord/pkg/command"
	"github.com/cuemby/overlord/pkg/cron"
	"github.com/cuemby/overlord/pkg/events"
	"github.com/cuemby/overlord/pkg/log"
	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/notify"
	"github.com/cuemby/overlord/pkg/queue"
	"github.com/cuemby/overlord/pkg/questions"
	"github.com/cuemby/overlord/pkg/reporter"
	"github.com/cuemby/overlord/pkg/runtime"
	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
	"github.com/cuemby/overlord/pkg/watchdog"
	"github.com/rs/zerolog"
)

// Orchestrator is the Overlord: the C11 composition root.
type Orchestrator struct {
	cfg *types.Config

	store     storage.Store
	runtime   runtime.Runtime
	scanner   queue.Scanner
	chat      chat.Adapter
	notify    *notify.Manager
	broker    *events.Broker
	questions *questions.Registry
	parser    *command.Parser

	reporter  *reporter.Server
	watchdog  *watchdog.Watchdog
	cleanup   *watchdog.Cleanup
	cron      *cron.Scheduler
	collector *metrics.Collector

	cmdHandlers map[command.Type]func(ctx context.Context, cmd command.Command) string

	logger zerolog.Logger

	mu     sync.Mutex
	paused bool
}

// New builds an Orchestrator from a validated Configuration Snapshot. It
// constructs every collaborator but starts nothing; call Run to begin
// serving.
func New(cfg *types.Config) (*Orchestrator, error) {
	store, err := storage.NewBoltStore(cfg.StateDB)
	if err != nil {
		metrics.RegisterComponent("storage", false, err.Error())
		return nil, fmt.Errorf("overlord: opening state store: %w", err)
	}
	metrics.RegisterComponent("storage", true, "")

	rt, err := buildRuntime(cfg)
	if err != nil {
		metrics.RegisterComponent("runtime", false, err.Error())
		store.Close()
		return nil, fmt.Errorf("overlord: building container runtime: %w", err)
	}
	metrics.RegisterComponent("runtime", true, "")

	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		runtime:   rt,
		scanner:   buildScanner(cfg),
		broker:    events.NewBroker(),
		questions: questions.NewRegistry(cfg.QuestionTTL),
		parser:    command.NewParser(cfg.DefaultRepo),
		logger:    log.WithComponent("orchestrator"),
	}

	handlers := chat.Handlers{OnCommand: o.HandleCommand, OnThreadReply: o.HandleThreadReply}
	o.chat = buildChatAdapter(cfg, handlers)
	o.notify = notify.NewManager(o.chat, true, true)

	o.reporter = reporter.NewServer(reporter.Deps{
		Store:     o.store,
		Runtime:   o.runtime,
		Scanner:   o.scanner,
		Questions: o.questions,
		Notify:    o.notify,
		Chat:      o.chat,
		Broker:    o.broker,
		Config:    cfg,
		Paused:    o.Paused,
	}, fmt.Sprintf(":%d", cfg.HealthPort))
	metrics.RegisterComponent("reporter", true, "")

	o.collector = metrics.NewCollector(o.store)

	o.watchdog = watchdog.New(watchdog.Deps{
		Store:            o.store,
		Runtime:          o.runtime,
		Notify:           o.notify,
		Broker:           o.broker,
		HeartbeatTimeout: cfg.HeartbeatTimeout,
		Interval:         cfg.WatchdogInterval,
		StubMode:         cfg.StubMode,
	})
	o.cleanup = watchdog.NewCleanup(o.runtime, cfg.CleanupInterval)

	if cfg.CronEnabled {
		sched, err := cron.New(cfg.CronSchedule, cron.Deps{
			Scanner:          o.scanner,
			Store:            o.store,
			Dispatch:         o.Dispatch,
			MaxConcurrent:    cfg.MaxConcurrent,
			Paused:           o.Paused,
			LLMBaseURL:       cfg.LLMBaseURL,
			LLMWarmupTimeout: cfg.LLMWarmupTimeout,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("overlord: building cron scheduler: %w", err)
		}
		o.cron = sched
	}

	o.cmdHandlers = map[command.Type]func(ctx context.Context, cmd command.Command) string{
		command.Status:  o.handleStatusCommand,
		command.Work:    o.handleWorkCommand,
		command.Stop:    o.handleStopCommand,
		command.Queue:   o.handleQueueCommand,
		command.Pause:   o.handlePauseCommand,
		command.Resume:  o.handleResumeCommand,
		command.History: o.handleHistoryCommand,
		command.Help:    o.handleHelpCommand,
		command.Unknown: o.handleUnknownCommand,
	}

	return o, nil
}

func buildRuntime(cfg *types.Config) (runtime.Runtime, error) {
	if cfg.StubMode {
		return runtime.NewStubRuntime(), nil
	}
	return runtime.NewContainerdRuntime(cfg.ContainerdSocket, cfg.ContainerImage)
}

func buildScanner(cfg *types.Config) queue.Scanner {
	if cfg.StubMode || cfg.GitHubToken == "" || len(cfg.WatchedRepos) == 0 {
		return queue.NewStubScanner(nil)
	}
	return queue.NewGitHubScanner(cfg.GitHubToken, cfg.WatchedRepos, cfg.ReadyLabel, cfg.InProgressLabel, cfg.InReviewLabel, cfg.NeedsAttentionLabel)
}

func buildChatAdapter(cfg *types.Config, handlers chat.Handlers) chat.Adapter {
	if cfg.SlackBotToken == "" || cfg.SlackAppToken == "" {
		return chat.NewStubAdapter(handlers)
	}
	return chat.NewSlackAdapter(cfg.SlackBotToken, cfg.SlackAppToken, cfg.SlackChannelID, handlers)
}

// Paused reports the current pause state, read by both the Reporter
// Endpoint's /status route and the Cron Scheduler's Sweep guard.
func (o *Orchestrator) Paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// SetPaused flips the pause flag, honoured by the Cron Scheduler on its
// next tick; in-flight work is never interrupted by a pause.
func (o *Orchestrator) SetPaused(paused bool) {
	o.mu.Lock()
	o.paused = paused
	o.mu.Unlock()
}

// callbackURL is the Reporter Endpoint address injected into every spawned
// minion's environment so it can report back over /minion/report.
func (o *Orchestrator) callbackURL() string {
	return fmt.Sprintf("http://localhost:%d/minion/report", o.cfg.HealthPort)
}

// Run executes the start-up sequence, serves until ctx is cancelled, then
// runs the shutdown sequence in the order spec.md §4.11 requires.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.runtime.EnsureNetwork(ctx); err != nil {
		return fmt.Errorf("overlord: ensure network: %w", err)
	}

	if err := o.syncActive(ctx); err != nil {
		o.logger.Error().Err(err).Msg("start-up reconciliation failed, continuing")
	}

	errCh := make(chan error, 2)

	go func() {
		o.logger.Info().Str("addr", fmt.Sprintf(":%d", o.cfg.HealthPort)).Msg("reporter endpoint starting")
		if err := o.reporter.Start(); err != nil {
			errCh <- fmt.Errorf("reporter endpoint: %w", err)
		}
	}()

	o.watchdog.Start()
	o.cleanup.Start()
	o.questions.Start()
	o.collector.Start()
	if o.cron != nil {
		o.cron.Start()
	}

	chatCtx, cancelChat := context.WithCancel(ctx)
	go func() {
		if err := o.chat.Start(chatCtx); err != nil {
			errCh <- fmt.Errorf("chat adapter: %w", err)
		}
	}()

	o.announceStartup(ctx)
	o.logger.Info().Msg("overlord running")

	select {
	case <-ctx.Done():
		o.logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		o.logger.Error().Err(err).Msg("component failed, shutting down")
	}

	// Shutdown: cancel background tasks, close queue scanner connections,
	// stop chat, drain the HTTP server — in that order.
	o.watchdog.Stop()
	o.cleanup.Stop()
	o.questions.Stop()
	o.collector.Stop()
	if o.cron != nil {
		o.cron.Stop()
	}

	if closer, ok := o.scanner.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			o.logger.Warn().Err(err).Msg("failed to close queue scanner")
		}
	}

	cancelChat()
	if err := o.chat.Stop(); err != nil {
		o.logger.Warn().Err(err).Msg("failed to stop chat adapter")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.reporter.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn().Err(err).Msg("reporter endpoint shutdown error")
	}

	if err := o.runtime.Close(); err != nil {
		o.logger.Warn().Err(err).Msg("failed to close container runtime")
	}

	return o.store.Close()
}

// syncActive reconciles the State Store's active table against what the
// Container Runtime actually has running, archiving any worker whose
// container is no longer present as failed/"container not found at startup".
func (o *Orchestrator) syncActive(ctx context.Context) error {
	active, err := o.store.GetActive()
	if err != nil {
		return fmt.Errorf("listing active workers: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	byRef := make(map[string]*types.Worker, len(active))
	ids := make([]string, 0, len(active))
	for _, w := range active {
		byRef[w.ContainerRef] = w
		ids = append(ids, w.ContainerRef)
	}

	stale, err := o.runtime.SyncActive(ctx, ids)
	if err != nil {
		return fmt.Errorf("runtime sync_active: %w", err)
	}

	for _, ref := range stale {
		w, ok := byRef[ref]
		if !ok {
			continue
		}
		if err := o.store.RecordCompletion(w.ID, types.WorkerFailed, 0, "container not found at startup"); err != nil {
			o.logger.Error().Err(err).Str("worker_id", w.ID).Msg("failed to archive stale worker during sync_active")
			continue
		}
		metrics.CompletionsTotal.WithLabelValues(string(types.WorkerFailed)).Inc()
		o.questions.Drop(w.ID)
		o.logger.Warn().Str("worker_id", w.ID).Msg("archived stale worker found during start-up reconciliation")
	}
	return nil
}

// announceStartup posts a one-time summary of the Overlord's configuration,
// mirroring the original Python's Overlord.run() start-up message.
func (o *Orchestrator) announceStartup(ctx context.Context) {
	cronStatus := "disabled"
	if o.cfg.CronEnabled {
		cronStatus = fmt.Sprintf("enabled (%s)", o.cfg.CronSchedule)
	}
	text := fmt.Sprintf(
		"Overlord online — concurrency cap %d, cron %s, watched repos: %s, paused: %v",
		o.cfg.MaxConcurrent, cronStatus, joinOrNone(o.cfg.WatchedRepos), o.Paused(),
	)
	o.notify.SendUrgent(ctx, text)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	out := items[0]
	for _, item := range items[1:] {
		out += ", " + item
	}
	return out
}
