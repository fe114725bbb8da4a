package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveWorkers is the current size of the active_workers table.
	ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "overlord_active_workers",
			Help: "Current number of active workers",
		},
	)

	WorkersByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overlord_workers_by_status",
			Help: "Current number of workers by status",
		},
		[]string{"status"},
	)

	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlord_dispatches_total",
			Help: "Total dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlord_completions_total",
			Help: "Total worker completions by terminal status",
		},
		[]string{"status"},
	)

	ReporterEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlord_reporter_events_total",
			Help: "Total /minion/report events received by kind",
		},
		[]string{"event"},
	)

	WatchdogTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "overlord_watchdog_timeouts_total",
			Help: "Total workers archived as timeout by the watchdog",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overlord_sweep_duration_seconds",
			Help:    "Time taken for one cron sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepDispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "overlord_sweep_dispatched_total",
			Help: "Total workers dispatched by cron sweeps",
		},
	)

	QueueScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overlord_queue_scan_duration_seconds",
			Help:    "Time taken for one queue scan",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueueScanErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "overlord_queue_scan_errors_total",
			Help: "Total queue scan failures (treated as TransientExternal)",
		},
	)

	PendingQuestions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "overlord_pending_questions",
			Help: "Current number of pending questions held, answered or not",
		},
	)

	ChatCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overlord_chat_commands_total",
			Help: "Total chat commands handled by command type",
		},
		[]string{"command"},
	)

	WatchdogCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "overlord_watchdog_cycle_duration_seconds",
			Help:    "Time taken for one watchdog tick",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		ActiveWorkers,
		WorkersByStatus,
		DispatchesTotal,
		CompletionsTotal,
		ReporterEventsTotal,
		WatchdogTimeoutsTotal,
		SweepDuration,
		SweepDispatchedTotal,
		QueueScanDuration,
		QueueScanErrorsTotal,
		PendingQuestions,
		ChatCommandsTotal,
		WatchdogCycleDuration,
	)
}

// Handler returns the Prometheus HTTP handler, mounted by the Reporter
// Endpoint alongside /health and /status.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
