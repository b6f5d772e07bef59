// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by the logical endpoint name rather
// than the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created per server and stored on Server so that
// tests can inject a fresh prometheus.Registry without polluting the
// default one.
type serverMetrics struct {
	// ingestRequestsTotal counts completed /index requests, partitioned by
	// outcome: "ok", "validation", "not_found", "upstream", or "error".
	ingestRequestsTotal *prometheus.CounterVec

	// ingestSegmentsTotal counts segments stored across all ingestions.
	ingestSegmentsTotal prometheus.Counter

	// queryRequestsTotal counts completed /query requests by outcome.
	queryRequestsTotal *prometheus.CounterVec

	// queryDurationSeconds records the wall-clock duration of successful
	// /query requests including retrieval and completion.
	queryDurationSeconds prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		ingestRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total number of /index requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestSegmentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "ingest",
			Name:      "segments_total",
			Help:      "Total number of segments embedded and stored across all ingestions.",
		}),

		queryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of /query requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docuchat",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of successful /query requests.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docuchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docuchat",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps next so every request increments the HTTP counters with
// the given handler label.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.
			WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.
			WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
