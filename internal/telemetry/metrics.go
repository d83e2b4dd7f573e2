package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal — завершённые run по статусу и причине.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_runs_total",
		Help: "Total number of finished orchestration runs",
	}, []string{"status", "cause"})

	// RunDuration — длительность run от загрузки конфигурации до dispatch.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cascade_run_duration_seconds",
		Help:    "Orchestration run duration",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"status"})

	// StageDuration — длительность стадий.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cascade_stage_duration_seconds",
		Help:    "Child workflow duration per stage",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"stage", "status"})

	// LandingWait — сколько ждали входные данные.
	LandingWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cascade_landing_wait_seconds",
		Help:    "Time spent waiting for landing data",
		Buckets: prometheus.ExponentialBuckets(1, 3, 8),
	}, []string{"found"})

	// DispatchFailures — ошибки best-effort действий dispatch (audit, notify, event sink).
	DispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_dispatch_side_effect_failures_total",
		Help: "Failed best-effort dispatch side effects",
	}, []string{"kind"})

	// ActiveRuns — run, выполняющиеся в этом процессе.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cascade_active_runs",
		Help: "Runs currently executing in this process",
	})

	// HTTPRequests — запросы к API по методу, маршруту и коду ответа.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_http_requests_total",
		Help: "HTTP requests served by the run API",
	}, []string{"method", "route", "code"})
)

// ObserveRun фиксирует завершение run.
func ObserveRun(status, cause string, d time.Duration) {
	RunsTotal.WithLabelValues(status, cause).Inc()
	RunDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveStage фиксирует завершение стадии.
func ObserveStage(stage, status string, d time.Duration) {
	StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// ObserveLanding фиксирует итог ожидания landing.
func ObserveLanding(found bool, d time.Duration) {
	label := "false"
	if found {
		label = "true"
	}
	LandingWait.WithLabelValues(label).Observe(d.Seconds())
}
