package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish metrics
var (
	IssuesPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_issues_published_total",
			Help: "Total number of newsletter issues accepted for delivery",
		},
	)

	IdempotentReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_idempotent_replays_total",
			Help: "Total number of publish requests answered from a saved response",
		},
		[]string{"path"}, // lookup, conflict
	)

	DeliveryTasksEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_delivery_tasks_enqueued_total",
			Help: "Total number of delivery tasks written to the outbox",
		},
	)

	InvalidSubscribersSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_invalid_subscribers_skipped_total",
			Help: "Total number of confirmed subscribers skipped at publish because their stored address is invalid",
		},
	)

	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_publish_duration_seconds",
			Help:    "Duration of the publish transaction",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Delivery metrics
var (
	DeliveryTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_delivery_tasks_processed_total",
			Help: "Total number of delivery tasks removed from the outbox by result",
		},
		[]string{"result"}, // sent, send_failed, send_rejected, invalid_recipient
	)

	WorkerIterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_worker_iterations_total",
			Help: "Total number of worker loop iterations by outcome",
		},
		[]string{"outcome"}, // task_completed, empty_queue, error
	)

	WorkerIterationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_worker_iteration_duration_seconds",
			Help:    "Duration of a single claim-send-delete iteration",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeliveryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsletter_delivery_queue_depth",
			Help: "Number of delivery tasks waiting in the outbox",
		},
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIAuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_auth_failures_total",
			Help: "Total number of API authentication failures",
		},
	)
)

// Database metrics
var (
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// SMTP ingress metrics
var (
	SMTPActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smtp_ingress_active_connections",
			Help: "Number of open SMTP ingress sessions",
		},
	)

	SMTPMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smtp_ingress_messages_total",
			Help: "Total number of messages received by the SMTP ingress",
		},
		[]string{"status"}, // "accepted", "rejected", "failed"
	)
)
