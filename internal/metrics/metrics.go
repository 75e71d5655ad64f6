// Package metrics exposes Prometheus collectors for aggregation passes, store
// queries and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"energyweb/internal/aggregate"
	"energyweb/internal/resolution"
	"energyweb/internal/store"
)

const namespace = "energyweb"

type Metrics struct {
	registry *prometheus.Registry

	passes       *prometheus.CounterVec
	noData       *prometheus.CounterVec
	rows         prometheus.Histogram
	queryTime    *prometheus.HistogramVec
	queryErrors  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_passes_total",
			Help:      "Aggregation passes over the graph cursor by resolution.",
		}, []string{"resolution"}),
		noData: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_nodata_total",
			Help:      "Aggregation passes that found no rows, by resolution.",
		}, []string{"resolution"}),
		rows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_rows",
			Help:      "Rows consumed per aggregation pass.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		queryTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "Duration of named store queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_query_errors_total",
			Help:      "Failed named store queries.",
		}, []string{"query"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.passes,
		m.noData,
		m.rows,
		m.queryTime,
		m.queryErrors,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is exposed for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePass implements aggregate.PassObserver.
func (m *Metrics) ObservePass(res resolution.Resolution, rows int, noData bool) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(string(res)).Inc()
	if noData {
		m.noData.WithLabelValues(string(res)).Inc()
	}
	m.rows.Observe(float64(rows))
}

// ObserveQuery implements store.QueryObserver.
func (m *Metrics) ObserveQuery(name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.queryTime.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		m.queryErrors.WithLabelValues(name).Inc()
	}
}

// GaugeFunc registers a gauge read from f at scrape time.
func (m *Metrics) GaugeFunc(name, help string, f func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, f))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// WrapHandler counts requests to next under the route label.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

var (
	_ aggregate.PassObserver = (*Metrics)(nil)
	_ store.QueryObserver    = (*Metrics)(nil)
)
