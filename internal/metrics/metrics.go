// Package metrics holds the Prometheus collectors for the ingestion pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "event_ingest"

// Metrics groups every pipeline collector.
type Metrics struct {
	listingPages  *prometheus.CounterVec
	eventIDs      *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	transforms    *prometheus.CounterVec
	importErrors  *prometheus.CounterVec
	httpRetries   *prometheus.CounterVec
	stageRuns     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	lastSuccessTS *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		listingPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_pages_total",
			Help:      "Listing pages processed by result",
		}, []string{"result"}),
		eventIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_ids_total",
			Help:      "External event ids observed on listing pages",
		}, []string{"kind"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detail_fetches_total",
			Help:      "Event detail fetches by result",
		}, []string{"result"}),
		transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transforms_total",
			Help:      "Event transforms by outcome",
		}, []string{"outcome"}),
		importErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_errors_total",
			Help:      "Rows written to the import error log by operation",
		}, []string{"operation"}),
		httpRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retries_total",
			Help:      "Upstream HTTP attempts that were retried",
		}, []string{"host"}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage runs by result",
		}, []string{"stage", "result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of pipeline stage runs",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 5400},
		}, []string{"stage"}),
		lastSuccessTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful stage run",
		}, []string{"stage"}),
	}
	reg.MustRegister(
		m.listingPages, m.eventIDs, m.fetches, m.transforms, m.importErrors,
		m.httpRetries, m.stageRuns, m.stageDuration, m.lastSuccessTS,
	)
	return m
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ListingPage counts a listing page as "fetched" or "skipped".
func (m *Metrics) ListingPage(result string) {
	if m == nil {
		return
	}
	m.listingPages.WithLabelValues(result).Inc()
}

// EventIDs adds discovered ids of kind "seen" or "created".
func (m *Metrics) EventIDs(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.eventIDs.WithLabelValues(kind).Add(float64(n))
}

// Fetch counts a detail fetch result.
func (m *Metrics) Fetch(result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
}

// Transform counts a transform outcome.
func (m *Metrics) Transform(outcome string) {
	if m == nil {
		return
	}
	m.transforms.WithLabelValues(outcome).Inc()
}

// ImportError counts a row written to the import error log.
func (m *Metrics) ImportError(operation string) {
	if m == nil {
		return
	}
	m.importErrors.WithLabelValues(operation).Inc()
}

// HTTPRetry counts a retried upstream attempt.
func (m *Metrics) HTTPRetry(host string) {
	if m == nil {
		return
	}
	m.httpRetries.WithLabelValues(host).Inc()
}

// StageRun records a finished stage run.
func (m *Metrics) StageRun(stage string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	} else {
		m.lastSuccessTS.WithLabelValues(stage).SetToCurrentTime()
	}
	m.stageRuns.WithLabelValues(stage, result).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(took.Seconds())
}
