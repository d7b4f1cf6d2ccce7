// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Package metrics provides Prometheus instrumentation for the ingestion
// pipeline: submission outcomes, dedupe decisions, commit latency,
// notification dispatch, and lootboard cache efficiency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submission pipeline metrics

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootledger_submissions_total",
			Help: "Total webhook submissions by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: accepted, duplicate, rejected, retry_later
	)

	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lootledger_submission_duration_seconds",
			Help:    "End-to-end submission processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lootledger_ingest_queue_depth",
			Help: "Submissions waiting in the ingest worker queue",
		},
	)

	// Dedupe metrics

	DedupeChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootledger_dedupe_checks_total",
			Help: "Fingerprint reservations by result",
		},
		[]string{"result"}, // fresh, duplicate_local, duplicate_store, error
	)

	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lootledger_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootledger_db_query_errors_total",
			Help: "Total DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	CommitRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lootledger_commit_rollbacks_total",
			Help: "Event commit transactions rolled back",
		},
	)

	// Notification metrics

	NotificationTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootledger_notification_tasks_total",
			Help: "Notification task transitions by status",
		},
		[]string{"status"}, // pending, sent, failed, suppressed
	)

	NotificationDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lootledger_notification_dispatch_duration_seconds",
			Help:    "Duration of delivery attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotificationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lootledger_notification_retries_total",
			Help: "Notification delivery retry attempts",
		},
	)

	// Lootboard cache metrics

	LootboardCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lootledger_lootboard_cache_hits_total",
			Help: "Lootboard reads served from a valid cached artifact",
		},
	)

	LootboardCacheStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lootledger_lootboard_cache_stale_total",
			Help: "Lootboard reads served stale while regeneration ran",
		},
	)

	LootboardRegenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootledger_lootboard_regenerations_total",
			Help: "Lootboard artifact regenerations by result",
		},
		[]string{"result"}, // ok, error
	)

	LootboardRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lootledger_lootboard_render_duration_seconds",
			Help:    "Duration of artifact rendering in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lootledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lootledger_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// WebSocket metrics

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lootledger_websocket_clients",
			Help: "Connected WebSocket clients",
		},
	)
)

// ObserveDBQuery records a query duration and any error for (operation, table).
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}
