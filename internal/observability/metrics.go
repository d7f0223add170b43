package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aq_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline
// and the query surface.
type Metrics struct {
	// Ingest and cleaning.
	FilesIngested   prometheus.Counter
	FilesFailed     prometheus.Counter
	RowsRead        prometheus.Counter
	TimeParseErrors prometheus.Counter
	MissingValues   prometheus.Counter

	// Reshape and join.
	LongRecords       prometheus.Counter
	DuplicatesDropped prometheus.Counter
	JoinMisses        *prometheus.CounterVec // labels: station_id
	Measurements      prometheus.Gauge
	RunDuration       prometheus.Histogram
	PipelineReady     prometheus.Gauge

	// Query surface.
	Queries      *prometheus.CounterVec // labels: chart_kind, outcome={ok,empty,invalid}
	RandomColors prometheus.Counter

	// Kafka sink.
	MessagesProduced prometheus.Counter
	PublishErrors    prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_ingested_total",
			Help:      "Source CSV files parsed successfully.",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_failed_total",
			Help:      "Source CSV files skipped because they could not be read or parsed.",
		}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Wide data rows read from source files.",
		}),
		TimeParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_parse_errors_total",
			Help:      "Rows dropped because date and hour did not form a valid timestamp.",
		}),
		MissingValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_values_total",
			Help:      "Station cells that were empty or non-numeric.",
		}),
		LongRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "long_records_total",
			Help:      "Long-format records produced by reshaping.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Long records dropped by the deduplication policy.",
		}),
		JoinMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_misses_total",
			Help:      "Long records whose station id was not in the registry.",
		}, []string{"station_id"}),
		Measurements: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "measurements",
			Help:      "Measurements in the currently served dataset.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of a complete ingest-normalize-reshape-join run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_ready",
			Help:      "1 when a dataset has been built and is being served, 0 otherwise.",
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Executed queries by chart kind and outcome.",
		}, []string{"chart_kind", "outcome"}),
		RandomColors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "random_colors_total",
			Help:      "Colours generated after the base palette was exhausted.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Measurements written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Batches that could not be written to the sink topic.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when station geocoding is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FilesIngested,
		m.FilesFailed,
		m.RowsRead,
		m.TimeParseErrors,
		m.MissingValues,
		m.LongRecords,
		m.DuplicatesDropped,
		m.JoinMisses,
		m.Measurements,
		m.RunDuration,
		m.PipelineReady,
		m.Queries,
		m.RandomColors,
		m.MessagesProduced,
		m.PublishErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
