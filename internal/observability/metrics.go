package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pickups"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard
// and the trip exporter.
type Metrics struct {
	// Dashboard rendering.
	PageRenders        *prometheus.CounterVec // labels: outcome={success,error}
	PageRenderDuration prometheus.Histogram

	// Dataset loading.
	DatasetCache         *prometheus.CounterVec // labels: result={hit,miss}
	DatasetFetchDuration prometheus.Histogram
	DatasetRows          prometheus.Gauge

	// Remote table store.
	RemoteQueries       *prometheus.CounterVec // labels: outcome={success,error,empty}
	RemoteQueryDuration prometheus.Histogram

	// Trip export.
	TripsConsumed   prometheus.Counter
	TripsProduced   prometheus.Counter
	TransformErrors prometheus.Counter
	ExportRunning   prometheus.Gauge
	BatchSize       prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PageRenders,
		m.PageRenderDuration,
		m.DatasetCache,
		m.DatasetFetchDuration,
		m.DatasetRows,
		m.RemoteQueries,
		m.RemoteQueryDuration,
		m.TripsConsumed,
		m.TripsProduced,
		m.TransformErrors,
		m.ExportRunning,
		m.BatchSize,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PageRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_renders_total",
			Help:      "Dashboard page renders by outcome.",
		}, []string{"outcome"}),
		PageRenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_render_duration_seconds",
			Help:      "Duration of a complete dashboard build and render.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DatasetCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_total",
			Help:      "Dataset memo cache lookups by result.",
		}, []string{"result"}),
		DatasetFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_fetch_duration_seconds",
			Help:      "Duration of a dataset download and parse.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Number of trips in the most recently fetched dataset.",
		}),
		RemoteQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_queries_total",
			Help:      "Remote table store queries by outcome.",
		}, []string{"outcome"}),
		RemoteQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_query_duration_seconds",
			Help:      "Remote table store request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		TripsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_trips_consumed_total",
			Help:      "Total trips read from the dataset by the exporter.",
		}),
		TripsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_trips_produced_total",
			Help:      "Total trips written to the export topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_transform_errors_total",
			Help:      "Total trip serialization failures.",
		}),
		ExportRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "export_running",
			Help:      "1 while the exporter is active, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_batch_size",
			Help:      "Number of trips per exported batch.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000},
		}),
	}
}
