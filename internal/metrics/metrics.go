package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job engine
	JobsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_started_total",
			Help: "Total number of sync jobs started",
		},
		[]string{"sync_type"},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_finished_total",
			Help: "Total number of sync jobs that reached a terminal status",
		},
		[]string{"sync_type", "status"},
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_jobs_running",
			Help: "Number of sync jobs currently executing",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_job_duration_seconds",
			Help:    "Wall time of sync jobs from start to terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"sync_type"},
	)

	EntityOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_entity_outcomes_total",
			Help: "Per-entity outcomes recorded by sync workflows",
		},
		[]string{"sync_type", "phase", "status"},
	)

	RecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_synced_total",
			Help: "Records upserted by sync workflows",
		},
		[]string{"record_type"},
	)

	// External sources
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_requests_total",
			Help: "Requests made to external data sources",
		},
		[]string{"source", "outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	// Notification channel
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of tracked websocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Messages delivered to websocket connections",
		},
		[]string{"type"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)
)
