// Package metrics holds the Prometheus collectors for the chart pipeline,
// the data refresher and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yieldcharts"

// Metrics is the collector set. A nil *Metrics is valid and records nothing,
// so packages can take one without checking.
type Metrics struct {
	registry *prometheus.Registry

	// series files read, by duration label
	SeriesLoaded *prometheus.CounterVec
	// files excluded because the identifier did not parse
	SeriesParseErrors prometheus.Counter
	// time to assemble one chart
	PipelineDuration *prometheus.HistogramVec
	// refresh runs by outcome status
	RefreshTotal *prometheus.CounterVec
	// age of the reference series' newest observation
	DataAgeDays prometheus.Gauge
	// API requests by route pattern and status code
	HTTPRequests *prometheus.CounterVec
}

// New creates the collectors on a private registry, alongside the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SeriesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_loaded_total",
			Help:      "Maturity series files loaded",
		}, []string{"label"}),
		SeriesParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_parse_errors_total",
			Help:      "Series files skipped because their identifier was not recognised",
		}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Chart assembly duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"chart"}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Data refresh runs by status",
		}, []string{"status"}),
		DataAgeDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "data_age_days",
			Help:      "Days since the newest reference observation",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SeriesLoaded,
		m.SeriesParseErrors,
		m.PipelineDuration,
		m.RefreshTotal,
		m.DataAgeDays,
		m.HTTPRequests,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SeriesLoadedFor counts one loaded file for label.
func (m *Metrics) SeriesLoadedFor(label string) {
	if m == nil {
		return
	}
	m.SeriesLoaded.WithLabelValues(label).Inc()
}

// ParseError counts one skipped file.
func (m *Metrics) ParseError() {
	if m == nil {
		return
	}
	m.SeriesParseErrors.Inc()
}

// ObservePipeline records how long chart took since start.
func (m *Metrics) ObservePipeline(chart string, start time.Time) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(chart).Observe(time.Since(start).Seconds())
}

// Refresh counts one refresh run ending in status.
func (m *Metrics) Refresh(status string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(status).Inc()
}

// SetDataAge records the staleness of the loaded data.
func (m *Metrics) SetDataAge(days int) {
	if m == nil {
		return
	}
	m.DataAgeDays.Set(float64(days))
}

// Request counts one served HTTP request.
func (m *Metrics) Request(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
