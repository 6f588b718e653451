// Package metrics provides Prometheus metrics for the modelscout service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by several counters.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
	OutcomeSkipped = "skipped"
)

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	ingestRuns      *prometheus.CounterVec
	ingestFallbacks prometheus.Counter
	ingestRows      *prometheus.CounterVec
	ingestLatency   prometheus.Histogram
	snapshotLastTS  prometheus.Gauge

	// Recommendation
	recommendRequests *prometheus.CounterVec
	recommendLatency  prometheus.Histogram
	recommendResults  prometheus.Histogram
	refreshes         *prometheus.CounterVec
	catalogSize       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "modelscout",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for all collectors
	auto := promauto.With(m.registry)

	m.ingestRuns = auto.NewCounterVec(
		m.counterOpts("ingest_runs_total", "Ingestion runs by source and outcome"),
		[]string{"source", "outcome"},
	)
	m.ingestFallbacks = auto.NewCounter(
		m.counterOpts("ingest_fallbacks_total", "Ingestion runs that fell back to the static source"),
	)
	m.ingestRows = auto.NewCounterVec(
		m.counterOpts("ingest_rows_total", "Canonical rows appended to the snapshot store"),
		[]string{"source"},
	)
	m.ingestLatency = auto.NewHistogram(
		m.histogramOpts("ingest_duration_seconds", "End-to-end ingestion latency in seconds", m.histogramBuckets),
	)
	m.snapshotLastTS = auto.NewGauge(
		m.gaugeOpts("snapshot_last_timestamp_seconds", "Unix time of the newest snapshot in the store"),
	)

	m.recommendRequests = auto.NewCounterVec(
		m.counterOpts("recommend_requests_total", "Recommendation requests by task type and outcome"),
		[]string{"task_type", "outcome"},
	)
	m.recommendLatency = auto.NewHistogram(
		m.histogramOpts("recommend_duration_seconds", "Recommendation latency in seconds, refresh included", m.histogramBuckets),
	)
	m.recommendResults = auto.NewHistogram(
		m.histogramOpts("recommend_results", "Number of recommendations returned per request", prometheus.LinearBuckets(0, 2, 11)),
	)
	m.refreshes = auto.NewCounterVec(
		m.counterOpts("refresh_total", "Freshness checks by outcome"),
		[]string{"outcome"},
	)
	m.catalogSize = auto.NewGauge(
		m.gaugeOpts("catalog_models", "Models in the latest-snapshot view at the last recommendation"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status code"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", prometheus.ExponentialBuckets(1, 2, 14)),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_total", "Errors by component and kind"),
		[]string{"component", "kind"},
	)
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RecordIngestRun counts one ingestion run.
func RecordIngestRun(source, outcome string) {
	globalManager.ingestRuns.WithLabelValues(source, outcome).Inc()
}

// RecordIngestFallback counts a switch to the fallback source.
func RecordIngestFallback() {
	globalManager.ingestFallbacks.Inc()
}

// RecordIngestRows adds appended rows for a source.
func RecordIngestRows(source string, rows int) {
	if rows <= 0 {
		return
	}
	globalManager.ingestRows.WithLabelValues(source).Add(float64(rows))
}

// RecordIngestLatency observes a run duration in seconds.
func RecordIngestLatency(seconds float64) {
	globalManager.ingestLatency.Observe(seconds)
}

// UpdateSnapshotTimestamp sets the newest snapshot time (unix seconds).
func UpdateSnapshotTimestamp(unix int64) {
	globalManager.snapshotLastTS.Set(float64(unix))
}

// RecordRecommendRequest counts a recommendation request.
func RecordRecommendRequest(taskType, outcome string) {
	globalManager.recommendRequests.WithLabelValues(taskType, outcome).Inc()
}

// RecordRecommendLatency observes a request duration in seconds.
func RecordRecommendLatency(seconds float64) {
	globalManager.recommendLatency.Observe(seconds)
}

// RecordRecommendResults observes how many rows a request returned.
func RecordRecommendResults(n int) {
	globalManager.recommendResults.Observe(float64(n))
}

// RecordRefresh counts a freshness decision.
func RecordRefresh(outcome string) {
	globalManager.refreshes.WithLabelValues(outcome).Inc()
}

// UpdateCatalogSize sets the latest-view size.
func UpdateCatalogSize(n int) {
	globalManager.catalogSize.Set(float64(n))
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordError counts an error for a component.
func RecordError(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}
