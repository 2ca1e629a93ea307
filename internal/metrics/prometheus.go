package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the cascade service.
// Collectors are registered on the registry passed to New so tests can use
// an isolated registry.
type Metrics struct {
	// JobsTotal counts finished jobs by type and terminal state.
	JobsTotal *prometheus.CounterVec

	// JobDuration tracks handler run time in seconds.
	JobDuration *prometheus.HistogramVec

	// QueueDepth tracks queued jobs per priority tier.
	QueueDepth *prometheus.GaugeVec

	// WorkersActive tracks the number of workers currently running a job.
	WorkersActive prometheus.Gauge

	// DocumentsAffected counts documents changed by cascade operations.
	DocumentsAffected *prometheus.CounterVec

	// OrphansCleaned counts orphaned references removed.
	OrphansCleaned prometheus.Counter

	// IntegrityIssues counts issues reported by validation scans.
	IntegrityIssues *prometheus.CounterVec

	// NotificationsDelivered counts events handed to a transport.
	NotificationsDelivered *prometheus.CounterVec

	// NotificationsDropped counts events discarded because the sink was full.
	NotificationsDropped prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_jobs_total",
				Help: "Total number of finished cascade jobs",
			},
			[]string{"type", "state"},
		),
		JobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cascade_job_duration_seconds",
				Help:    "Duration of cascade jobs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"type"},
		),
		QueueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cascade_queue_depth",
				Help: "Number of queued jobs per priority",
			},
			[]string{"priority"},
		),
		WorkersActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "cascade_workers_active",
				Help: "Number of workers currently running a job",
			},
		),
		DocumentsAffected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_documents_affected_total",
				Help: "Documents changed by cascade operations",
			},
			[]string{"collection", "operation"},
		),
		OrphansCleaned: f.NewCounter(
			prometheus.CounterOpts{
				Name: "cascade_orphans_cleaned_total",
				Help: "Orphaned references removed by cleanup jobs",
			},
		),
		IntegrityIssues: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_integrity_issues_total",
				Help: "Issues reported by integrity validation",
			},
			[]string{"type"},
		),
		NotificationsDelivered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cascade_notifications_delivered_total",
				Help: "Events handed to a notification transport",
			},
			[]string{"transport"},
		),
		NotificationsDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "cascade_notifications_dropped_total",
				Help: "Events dropped because the notification buffer was full",
			},
		),
	}
}
