// internal/monitoring/metrics.go

// Package monitoring exposes Prometheus metrics and health checks for
// musicmanager runs and the API server.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects musicmanager metrics on its own registry. It implements
// the fetch, resolver and pipeline observer interfaces.
type Metrics struct {
	registry *prometheus.Registry

	// Fetch metrics
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// Resolution metrics
	linksTotal    *prometheus.CounterVec
	emittedLinks  *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	rowsWritten   *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runsCompleted prometheus.Counter
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace       string `json:"namespace"`
	EnableGoMetrics bool   `json:"enable_go_metrics"`
}

// NewMetrics creates the metrics on a fresh registry.
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "musicmanager"
	}

	reg := prometheus.NewRegistry()
	if config.EnableGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)
	ns := config.Namespace

	return &Metrics{
		registry: reg,
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Page fetches by host and outcome",
			},
			[]string{"host", "outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Page fetch duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"host"},
		),
		linksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "resolver",
				Name:      "links_total",
				Help:      "Provider attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		emittedLinks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "resolver",
				Name:      "emitted_links_total",
				Help:      "Links emitted by redirecting providers",
			},
			[]string{"provider"},
		),
		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "records_total",
				Help:      "Resolved records by outcome",
			},
			[]string{"outcome"},
		),
		duplicates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "duplicates_total",
				Help:      "Entities dropped as duplicates by reason",
			},
			[]string{"reason"},
		),
		rowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "rows_written_total",
				Help:      "Rows appended per sheet",
			},
			[]string{"sheet"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline runs",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		runsCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Completed pipeline runs",
			},
		),
	}
}

// ObserveFetch records a finished page fetch.
func (m *Metrics) ObserveFetch(host, outcome string, d time.Duration) {
	m.fetchesTotal.WithLabelValues(host, outcome).Inc()
	m.fetchDuration.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveLink records one provider attempt.
func (m *Metrics) ObserveLink(provider, outcome string) {
	m.linksTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveEmission records the links one redirecting call produced.
func (m *Metrics) ObserveEmission(provider string, links int) {
	m.emittedLinks.WithLabelValues(provider).Add(float64(links))
}

// ObserveRecord records a resolved record.
func (m *Metrics) ObserveRecord(outcome string) {
	m.recordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuplicate records a dropped duplicate.
func (m *Metrics) ObserveDuplicate(reason string) {
	m.duplicates.WithLabelValues(reason).Inc()
}

// ObserveRowsWritten records rows appended to a sheet.
func (m *Metrics) ObserveRowsWritten(sheet string, rows int) {
	m.rowsWritten.WithLabelValues(sheet).Add(float64(rows))
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(d time.Duration) {
	m.runDuration.Observe(d.Seconds())
	m.runsCompleted.Inc()
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
