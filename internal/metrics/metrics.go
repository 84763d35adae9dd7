// Package metrics exposes Prometheus instrumentation for the import engine
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vmunix/bulkimport/internal/batch"
)

const namespace = "bulkimport"

// Metrics holds every collector on a private registry. It implements
// batch.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	filesProcessed *prometheus.CounterVec
	fileDuration   *prometheus.HistogramVec
	batchElapsed   prometheus.Histogram
	pacingDelay    prometheus.Histogram
	jobsFinished   *prometheus.CounterVec
	inFlight       prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpActive   prometheus.Gauge
}

// New registers all collectors. With withRuntime set, Go runtime and process
// collectors are registered too.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		filesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files processed by outcome and failure kind.",
		}, []string{"outcome", "kind"}),
		fileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time spent in the per-file pipeline.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"outcome"}),
		batchElapsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time from batch dispatch to the last result.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		pacingDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pacing_delay_seconds",
			Help:      "Pause inserted between batches.",
			Buckets:   []float64{0, 0.05, 0.1, 0.15, 0.25, 0.4, 0.8, 1.6},
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state.",
		}, []string{"state"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_in_flight",
			Help:      "Files currently in the per-file pipeline.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "HTTP requests being served.",
		}),
	}

	m.registry.MustRegister(
		m.filesProcessed, m.fileDuration, m.batchElapsed, m.pacingDelay,
		m.jobsFinished, m.inFlight,
		m.httpRequests, m.httpDuration, m.httpActive,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FileProcessed implements batch.Recorder.
func (m *Metrics) FileProcessed(outcome batch.Outcome, kind batch.ErrorKind, d time.Duration) {
	m.filesProcessed.WithLabelValues(string(outcome), string(kind)).Inc()
	m.fileDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

// BatchSettled implements batch.Recorder.
func (m *Metrics) BatchSettled(elapsed, delay time.Duration) {
	m.batchElapsed.Observe(elapsed.Seconds())
	m.pacingDelay.Observe(delay.Seconds())
}

// JobFinished implements batch.Recorder.
func (m *Metrics) JobFinished(state batch.State) {
	m.jobsFinished.WithLabelValues(string(state)).Inc()
}

// InFlight implements batch.Recorder.
func (m *Metrics) InFlight(delta int) {
	m.inFlight.Add(float64(delta))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpActive.Inc()
		defer m.httpActive.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
