package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// air-quality ETL pipeline.
type Metrics struct {
	// Extraction metrics.
	SourceRequests    *prometheus.CounterVec   // labels: source, outcome={success,timeout,unreachable,malformed,rate_limited}
	SourceDuration    *prometheus.HistogramVec // labels: source
	CitiesExtracted   *prometheus.CounterVec   // labels: result={primary,secondary,failed}
	ReadingsExtracted prometheus.Counter

	// Normalization metrics.
	RecordsNormalized prometheus.Counter
	RecordsDropped    prometheus.Counter

	// Load metrics.
	RowsInserted      prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	RowFailures       prometheus.Counter
	LoadBatchDuration prometheus.Histogram

	// Run metrics.
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SourceRequests,
		m.SourceDuration,
		m.CitiesExtracted,
		m.ReadingsExtracted,
		m.RecordsNormalized,
		m.RecordsDropped,
		m.RowsInserted,
		m.DuplicatesSkipped,
		m.RowFailures,
		m.LoadBatchDuration,
		m.PipelineRunning,
		m.RunDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_etl",
			Name:      "source_requests_total",
			Help:      "Source API fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aq_etl",
			Name:      "source_request_duration_seconds",
			Help:      "Source API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		CitiesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_etl",
			Name:      "cities_extracted_total",
			Help:      "Cities processed per run by extraction result.",
		}, []string{"result"}),
		ReadingsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_etl",
			Name:      "readings_extracted_total",
			Help:      "Raw readings accepted from any source.",
		}),
		RecordsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_etl",
			Name:      "records_normalized_total",
			Help:      "Canonical records produced by the normalizer.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_etl",
			Name:      "records_dropped_total",
			Help:      "Raw readings dropped for having no pollutant data.",
		}),
		RowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_etl",
			Name:      "rows_inserted_total",
			Help:      "Rows inserted into the store.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_etl",
			Name:      "duplicates_skipped_total",
			Help:      "Records skipped because a row with the same (city, time) key exists.",
		}),
		RowFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_etl",
			Name:      "row_failures_total",
			Help:      "Rows that failed to insert after bounded retries.",
		}),
		LoadBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aq_etl",
			Name:      "load_batch_duration_seconds",
			Help:      "Duration of one batched store write.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aq_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aq_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-normalize-load run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
}
