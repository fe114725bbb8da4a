package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/overlord/pkg/chat"
	"github.com/cuemby/overlord/pkg/events"
	"github.com/cuemby/overlord/pkg/log"
	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/notify"
	"github.com/cuemby/overlord/pkg/queue"
	"github.com/cuemby/overlord/pkg/questions"
	"github.com/cuemby/overlord/pkg/runtime"
	"github.com/cuemby/overlord/pkg/storage"
	"github.com/cuemby/overlord/pkg/types"
	"github.com/google/uuid"
)

// lastScanner is implemented by Scanners that cache their last result, used
// by the /queue route. Scanners that don't implement it report an empty
// queue rather than forcing a fresh scan from an HTTP handler.
type lastScanner interface {
	LastScan() []types.QueueItem
}

// Deps are the Reporter Endpoint's collaborators. Paused reports the
// Orchestrator's current pause state without the Reporter owning it.
type Deps struct {
	Store     storage.Store
	Runtime   runtime.Runtime
	Scanner   queue.Scanner
	Questions *questions.Registry
	Notify    *notify.Manager
	Chat      chat.Adapter
	Broker    *events.Broker
	Config    *types.Config
	Paused    func() bool
}

// Server is the Reporter Endpoint's HTTP server.
type Server struct {
	deps Deps
	mux  *http.ServeMux
	srv  *http.Server
}

// NewServer builds a Server wired to deps, listening on addr once Start is called.
func NewServer(deps Deps, addr string) *Server {
	mux := http.NewServeMux()
	s := &Server{deps: deps, mux: mux}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /queue", s.handleQueue)
	mux.HandleFunc("POST /minion/report", s.handleReport)
	mux.HandleFunc("GET /minion/answer/{id}", s.handleAnswer)
	mux.Handle("GET /ready", metrics.ReadyHandler())
	mux.Handle("GET /live", metrics.LivenessHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Mux exposes the underlying handler, e.g. to mount the Prometheus endpoint
// alongside the Reporter's own routes.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops serving.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status          string `json:"status"`
	ActiveMinions   int    `json:"active_minions"`
	Paused          bool   `json:"paused"`
	DockerAvailable bool   `json:"docker_available"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, err := s.deps.Store.GetActive()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "ok",
		ActiveMinions:   len(active),
		Paused:          s.deps.Paused(),
		DockerAvailable: s.deps.Runtime.Available(r.Context()),
	})
}

type statusResponse struct {
	ActiveWorkers    []*types.Worker          `json:"active_workers"`
	Containers       []string                 `json:"containers"`
	PendingQuestions []types.PendingQuestion  `json:"pending_questions"`
	Paused           bool                     `json:"paused"`
	Config           map[string]any           `json:"config"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	active, err := s.deps.Store.GetActive()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	containers, err := s.deps.Runtime.List(r.Context())
	if err != nil {
		log.Logger.Warn().Err(err).Msg("status: failed to list containers")
		containers = nil
	}

	writeJSON(w, http.StatusOK, statusResponse{
		ActiveWorkers:    active,
		Containers:       containers,
		PendingQuestions: s.deps.Questions.List(),
		Paused:           s.deps.Paused(),
		Config:           configSnapshot(s.deps.Config),
	})
}

func configSnapshot(cfg *types.Config) map[string]any {
	if cfg == nil {
		return nil
	}
	return map[string]any{
		"max_concurrent":    cfg.MaxConcurrent,
		"timeout_minutes":   cfg.TimeoutMinutes,
		"watched_repos":     cfg.WatchedRepos,
		"default_repo":      cfg.DefaultRepo,
		"cron_enabled":      cfg.CronEnabled,
		"cron_schedule":     cfg.CronSchedule,
		"stub_mode":         cfg.StubMode,
	}
}

type queueResponse struct {
	Items  []types.QueueItem `json:"items"`
	Paused bool              `json:"paused"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	var items []types.QueueItem
	if ls, ok := s.deps.Scanner.(lastScanner); ok {
		items = ls.LastScan()
	}
	writeJSON(w, http.StatusOK, queueResponse{Items: items, Paused: s.deps.Paused()})
}

type reportRequest struct {
	MinionID      string            `json:"minion_id"`
	Event         string            `json:"event"`
	Issue         *int              `json:"issue,omitempty"`
	Message       string            `json:"message,omitempty"`
	Data          map[string]string `json:"data,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid JSON body"})
		return
	}
	if req.MinionID == "" || req.Event == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "minion_id and event are required"})
		return
	}

	ctx := log.ContextWithCorrelationID(r.Context(), req.CorrelationID)
	logger := log.FromContext(ctx).With().Str("minion_id", req.MinionID).Str("event", req.Event).Logger()

	worker, err := s.deps.Store.Get(req.MinionID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown minion"})
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("report: store lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	if err := s.dispatchEvent(ctx, worker, req); err != nil {
		logger.Error().Err(err).Msg("report: event handling failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) dispatchEvent(ctx context.Context, w *types.Worker, req reportRequest) error {
	metrics.ReporterEventsTotal.WithLabelValues(req.Event).Inc()

	switch req.Event {
	case "heartbeat":
		w.LastHeartbeat = time.Now()
		if err := s.deps.Store.UpdateWorker(w); err != nil {
			return err
		}
		s.publish(events.WorkerHeartbeat, req.MinionID, "")
		return nil

	case "progress":
		w.Status = types.WorkerWorking
		w.LastHeartbeat = time.Now()
		if err := s.deps.Store.UpdateWorker(w); err != nil {
			return err
		}
		s.publish(events.WorkerProgress, req.MinionID, req.Message)
		if s.deps.Chat != nil && req.Message != "" {
			text := fmt.Sprintf("Minion `%s` on %s#%d: %s", w.ID, w.Repo, w.IssueNumber, req.Message)
			if _, err := s.deps.Chat.Post(ctx, text, ""); err != nil {
				log.FromContext(ctx).Warn().Err(err).Msg("failed to relay progress to chat")
			}
		}
		return nil

	case "question":
		return s.handleQuestionEvent(ctx, w, req)

	case "complete":
		return s.handleCompleteEvent(ctx, w, req)

	case "error":
		return s.handleErrorEvent(ctx, w, req)

	default:
		return fmt.Errorf("unknown event type %q", req.Event)
	}
}

func (s *Server) handleQuestionEvent(ctx context.Context, w *types.Worker, req reportRequest) error {
	var threadRef string
	if s.deps.Chat != nil {
		ref, err := s.deps.Chat.PostQuestion(ctx, w.ID, w.IssueNumber, req.Message)
		if err != nil {
			log.FromContext(ctx).Warn().Err(err).Msg("failed to post question to chat")
		}
		threadRef = ref
	}

	s.deps.Questions.Add(types.PendingQuestion{
		MinionID:     w.ID,
		QuestionID:   uuid.NewString(),
		IssueNumber:  w.IssueNumber,
		Repo:         w.Repo,
		QuestionText: req.Message,
		ThreadRef:    threadRef,
		CreatedAt:    time.Now(),
	})
	s.publish(events.QuestionCreated, w.ID, req.Message)
	return nil
}

func (s *Server) handleCompleteEvent(ctx context.Context, w *types.Worker, req reportRequest) error {
	prNumber := 0
	if v, ok := req.Data["pr_number"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			prNumber = n
		}
	}

	if err := s.deps.Store.RecordCompletion(w.ID, types.WorkerCompleted, prNumber, ""); err != nil && !errors.Is(err, storage.ErrAlreadyArchived) {
		return err
	}
	metrics.CompletionsTotal.WithLabelValues(string(types.WorkerCompleted)).Inc()
	if prNumber > 0 && s.deps.Scanner != nil {
		if err := s.deps.Scanner.MarkInReview(ctx, w.Repo, w.IssueNumber, prNumber); err != nil {
			log.FromContext(ctx).Warn().Err(err).Msg("failed to mark queue item in-review")
		}
	}
	if s.deps.Runtime != nil {
		if err := s.deps.Runtime.Kill(ctx, w.ContainerRef); err != nil {
			log.FromContext(ctx).Warn().Err(err).Msg("failed to kill completed worker's container")
		}
	}
	s.deps.Questions.Drop(w.ID)
	if s.deps.Notify != nil {
		s.deps.Notify.Accumulate(notify.Execution, fmt.Sprintf("%s#%d completed (minion `%s`)", w.Repo, w.IssueNumber, w.ID))
	}
	s.publish(events.WorkerCompleted, w.ID, req.Message)
	return nil
}

func (s *Server) handleErrorEvent(ctx context.Context, w *types.Worker, req reportRequest) error {
	if err := s.deps.Store.RecordCompletion(w.ID, types.WorkerFailed, 0, req.Message); err != nil && !errors.Is(err, storage.ErrAlreadyArchived) {
		return err
	}
	metrics.CompletionsTotal.WithLabelValues(string(types.WorkerFailed)).Inc()
	if s.deps.Scanner != nil {
		if err := s.deps.Scanner.MarkFailed(ctx, w.Repo, w.IssueNumber, req.Message); err != nil {
			log.FromContext(ctx).Warn().Err(err).Msg("failed to mark queue item failed")
		}
	}
	if s.deps.Runtime != nil {
		if err := s.deps.Runtime.Kill(ctx, w.ContainerRef); err != nil {
			log.FromContext(ctx).Warn().Err(err).Msg("failed to kill failed worker's container")
		}
	}
	s.deps.Questions.Drop(w.ID)
	if s.deps.Notify != nil {
		s.deps.Notify.Accumulate(notify.Execution, fmt.Sprintf("%s#%d failed (minion `%s`): %s", w.Repo, w.IssueNumber, w.ID, req.Message))
	}
	s.publish(events.WorkerFailed, w.ID, req.Message)
	return nil
}

func (s *Server) publish(t events.Type, minionID, message string) {
	if s.deps.Broker == nil {
		return
	}
	s.deps.Broker.Publish(&events.Event{
		Type:     t,
		Message:  message,
		Metadata: map[string]string{"minion_id": minionID},
	})
}

type answerResponse struct {
	Answered bool   `json:"answered"`
	Answer   string `json:"answer,omitempty"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, ok := s.deps.Questions.Get(id)
	if !ok || !q.Answered {
		writeJSON(w, http.StatusOK, answerResponse{Answered: false})
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answered: true, Answer: q.Answer})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
