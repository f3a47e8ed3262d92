package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	RoutinesCreatedTotal prometheus.Counter
	PatientsCreatedTotal prometheus.Counter

	BatchesIngestedTotal  prometheus.Counter
	EntriesProjectedTotal prometheus.Counter
	ActiveWatches         prometheus.Gauge
	ActiveSubscriptions   prometheus.Gauge
	SourceErrorsTotal     prometheus.Counter

	SnapshotsWrittenTotal prometheus.Counter
	SnapshotsDropped      prometheus.Counter

	DBQueryDuration *prometheus.HistogramVec
	DBConnections   prometheus.Gauge
}

func NewCollector(serviceName string) *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		RoutinesCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "care",
			Name:      "routines_created_total",
			Help:      "Total number of routine records created.",
		}),

		PatientsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "care",
			Name:      "patients_created_total",
			Help:      "Total number of patient records created.",
		}),

		BatchesIngestedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "schedule",
			Name:      "batches_ingested_total",
			Help:      "Total routine batches ingested across all sources.",
		}),

		EntriesProjectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "schedule",
			Name:      "entries_projected_total",
			Help:      "Total schedule entries produced by projection passes.",
		}),

		ActiveWatches: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "schedule",
			Name:      "active_watches",
			Help:      "Patients with an active schedule watch.",
		}),

		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "schedule",
			Name:      "active_subscriptions",
			Help:      "Open per-provider routine source subscriptions.",
		}),

		SourceErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "schedule",
			Name:      "source_errors_total",
			Help:      "Source delivery failures; each leaves its source contributing zero entries.",
		}),

		SnapshotsWrittenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "snapshot",
			Name:      "written_total",
			Help:      "Schedule snapshots published to the cache.",
		}),

		SnapshotsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "snapshot",
			Name:      "dropped_total",
			Help:      "Snapshots dropped due to full writer buffer. Alert if non-zero.",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency distribution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"operation", "table"}),

		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Current number of open database connections.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
