package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Registration metrics
	PlansRegistered    *prometheus.CounterVec
	PlansRejected      *prometheus.CounterVec
	EntriesPublished   *prometheus.CounterVec
	RegistrationTime   *prometheus.HistogramVec
	HoldMissingOnWrite prometheus.Counter

	// Replay metrics
	EntriesApplied *prometheus.CounterVec
	ApplyDuration  prometheus.Histogram
	ApplyErrors    *prometheus.CounterVec

	// Consumer metrics
	RecordsConsumed *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
	ConsumerOffset  *prometheus.GaugeVec
	WorkerRestarts  *prometheus.CounterVec
	WorkersAlive    prometheus.Gauge

	// Read metrics
	NotReady  *prometheus.CounterVec
	Reads     *prometheus.CounterVec
	ReadDelay prometheus.Histogram

	// Storage metrics
	StorageConflicts prometheus.Counter
	StorageErrors    *prometheus.CounterVec

	// Log metrics
	LogOperations *prometheus.CounterVec
	LogErrors     *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Registration metrics
		PlansRegistered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_plans_registered_total",
				Help: "Total number of plans published to the log",
			},
			[]string{"operation"},
		),
		PlansRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_plans_rejected_total",
				Help: "Total number of plans rejected before publishing",
			},
			[]string{"operation", "reason"},
		),
		EntriesPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_entries_published_total",
				Help: "Total number of ledger entries published",
			},
			[]string{"operation"},
		),
		RegistrationTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accounter_registration_duration_seconds",
				Help:    "Duration of plan registration including publish",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		HoldMissingOnWrite: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounter_registration_hold_missing_total",
			Help: "Final operations registered for batches with no local hold",
		}),

		// Replay metrics
		EntriesApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_entries_applied_total",
				Help: "Total ledger entries replayed by outcome",
			},
			[]string{"operation", "status"},
		),
		ApplyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounter_apply_duration_seconds",
			Help:    "Duration of applying one entry",
			Buckets: prometheus.DefBuckets,
		}),
		ApplyErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_apply_errors_total",
				Help: "Total entries that failed to apply",
			},
			[]string{"error_type"},
		),

		// Consumer metrics
		RecordsConsumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_records_consumed_total",
				Help: "Total log records handled per partition",
			},
			[]string{"partition"},
		),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounter_consumer_batch_duration_seconds",
			Help:    "Duration of handling one polled batch",
			Buckets: prometheus.DefBuckets,
		}),
		ConsumerOffset: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "accounter_consumer_offset",
				Help: "Last persisted consumer offset per partition",
			},
			[]string{"partition"},
		),
		WorkerRestarts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_worker_restarts_total",
				Help: "Total consumer workers replaced by the supervisor",
			},
			[]string{"worker"},
		),
		WorkersAlive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "accounter_workers_alive",
			Help: "Current number of running consumer workers",
		}),

		// Read metrics
		NotReady: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_not_ready_total",
				Help: "Total requests refused by the consistency gate",
			},
			[]string{"partition"},
		),
		Reads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_reads_total",
				Help: "Total account reads",
			},
			[]string{"kind", "status"},
		),
		ReadDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "accounter_clock_lag_offsets",
			Help:    "Offsets a gated request was ahead of local replay",
			Buckets: []float64{1, 2, 5, 10, 50, 100, 1000, 10000},
		}),

		// Storage metrics
		StorageConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "accounter_storage_conflicts_total",
			Help: "Total storage transactions retried after a conflict",
		}),
		StorageErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_storage_errors_total",
				Help: "Total storage errors",
			},
			[]string{"operation"},
		),

		// Log metrics
		LogOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_log_operations_total",
				Help: "Total log backend operations",
			},
			[]string{"backend", "operation"},
		),
		LogErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_log_errors_total",
				Help: "Total log backend errors",
			},
			[]string{"backend", "operation"},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounter_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),
	}
}
