package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Dispatch metrics
	DispatchTotal        *prometheus.CounterVec
	DispatchContacts     *prometheus.CounterVec
	DispatchDuration     prometheus.Histogram
	StaleTriggersIgnored prometheus.Counter

	// Ledger metrics
	LedgerWriteLatency prometheus.Histogram
	LedgerWriteErrors  prometheus.Counter

	// Queue metrics
	QueueDepth       prometheus.Gauge
	JobsEnqueued     prometheus.Counter
	JobsProcessed    prometheus.Counter
	JobsFailed       prometheus.Counter
	JobProcessingLag prometheus.Histogram

	// Provider metrics
	ProviderSends   *prometheus.CounterVec
	ProviderLatency prometheus.Histogram
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		DispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_total",
			Help:      "Dispatch invocations by outcome (queued, skipped, ignored, error)",
		}, []string{"outcome"}),
		DispatchContacts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_contacts_total",
			Help:      "Contacts processed by precheck decision (admitted, skipped)",
		}, []string{"decision"}),
		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "End-to-end duration of a dispatch invocation",
			Buckets:   prometheus.DefBuckets,
		}),
		StaleTriggersIgnored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stale_triggers_ignored_total",
			Help:      "Scheduler triggers ignored because the campaign was cancelled or rescheduled",
		}),
		LedgerWriteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ledger_write_latency_seconds",
			Help:      "Latency of the batched ledger upsert",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		LedgerWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ledger_write_errors_total",
			Help:      "Failed ledger batch writes (each aborts its dispatch)",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Current number of jobs waiting in the dispatch queue",
		}),
		JobsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_enqueued_total",
			Help:      "Dispatch jobs handed to the durable queue",
		}),
		JobsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_processed_total",
			Help:      "Dispatch jobs drained and completed by the worker",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_failed_total",
			Help:      "Dispatch jobs that failed processing",
		}),
		JobProcessingLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_processing_lag_seconds",
			Help:      "Time between enqueue and the worker picking a job up",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		}),
		ProviderSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_sends_total",
			Help:      "Per-contact provider calls by result (sent, failed)",
		}, []string{"result"}),
		ProviderLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_latency_seconds",
			Help:      "Latency of individual provider send calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
