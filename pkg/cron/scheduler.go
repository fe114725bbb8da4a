package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/overlord/pkg/health"
	"github.com/cuemby/overlord/pkg/log"
	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/queue"
	"github.com/cuemby/overlord/pkg/storage"
	robfigcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// sleepSlice bounds how long the scheduler ever blocks in one select,
// so Stop is never delayed by more than this much.
const sleepSlice = 5 * time.Second

// DispatchFunc is the Orchestrator's dispatch pipeline, injected to avoid a
// cyclic import between cron and the composition root.
type DispatchFunc func(ctx context.Context, repo string, issue int) (string, error)

// Deps are the Cron Scheduler's collaborators.
type Deps struct {
	Scanner          queue.Scanner
	Store            storage.Store
	Dispatch         DispatchFunc
	MaxConcurrent    int
	Paused           func() bool
	LLMBaseURL       string
	LLMWarmupTimeout time.Duration
}

// Scheduler is the Cron Scheduler.
type Scheduler struct {
	deps     Deps
	schedule robfigcron.Schedule
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// New parses expr (standard 5-field cron syntax) and returns a Scheduler.
func New(expr string, deps Deps) (*Scheduler, error) {
	schedule, err := robfigcron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid schedule %q: %w", expr, err)
	}
	return &Scheduler{
		deps:     deps,
		schedule: schedule,
		logger:   log.WithComponent("cron"),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts the scheduler loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) run() {
	s.logger.Info().Msg("cron scheduler started")
	for {
		next := s.schedule.Next(time.Now())
		if !s.sleepUntil(next) {
			s.logger.Info().Msg("cron scheduler stopped")
			return
		}
		s.Sweep(context.Background())
	}
}

// sleepUntil blocks until t or the stop signal, whichever comes first, in
// bounded slices. Returns false if stopped before t was reached.
func (s *Scheduler) sleepUntil(t time.Time) bool {
	for {
		remaining := time.Until(t)
		if remaining <= 0 {
			return true
		}
		wait := sleepSlice
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-time.After(wait):
		case <-s.stopCh:
			return false
		}
	}
}

// Sweep dispatches queued work up to the available concurrency slots.
func (s *Scheduler) Sweep(ctx context.Context) {
	if s.deps.Paused != nil && s.deps.Paused() {
		s.logger.Debug().Msg("sweep skipped, queue paused")
		return
	}
	if s.deps.Scanner == nil {
		return
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SweepDuration)

	active, err := s.deps.Store.GetActive()
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep: failed to count active workers")
		return
	}
	availableSlots := s.deps.MaxConcurrent - len(active)
	if availableSlots <= 0 {
		s.logger.Debug().Msg("sweep skipped, no available slots")
		return
	}

	s.warmupLLM(ctx)

	items := s.deps.Scanner.Scan(ctx)
	dispatched := 0
	for _, item := range items {
		if dispatched >= availableSlots {
			break
		}
		id, err := s.deps.Dispatch(ctx, item.Repo, item.Number)
		if err != nil {
			s.logger.Warn().Err(err).Str("repo", item.Repo).Int("issue", item.Number).Msg("sweep: dispatch rejected")
			continue
		}
		s.logger.Info().Str("worker_id", id).Str("repo", item.Repo).Int("issue", item.Number).Msg("sweep dispatched worker")
		dispatched++
		metrics.SweepDispatchedTotal.Inc()
	}
}

// warmupLLM pings the configured language-model endpoint with a bounded
// timeout. Failure is only ever a warning; it never blocks the sweep.
func (s *Scheduler) warmupLLM(ctx context.Context) {
	if s.deps.LLMBaseURL == "" {
		return
	}
	timeout := s.deps.LLMWarmupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	checker := health.NewHTTPChecker(s.deps.LLMBaseURL).WithTimeout(timeout)

	warmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result := checker.Check(warmCtx)
	if !result.Healthy {
		s.logger.Warn().Str("message", result.Message).Msg("LLM warm-up failed")
	}
}
