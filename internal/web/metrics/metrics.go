// Package metrics exposes Prometheus collectors for the HTTP layer and the
// feedback domain.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portfolio-egg/egg/internal/web/middleware"
)

const namespace = "egg"

// Metrics holds the application collectors and the registry they are
// exposed from.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	feedbacks      *prometheus.CounterVec
	authAttempts   *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	blobsCollected prometheus.Counter
	streamClients  prometheus.Gauge
}

// New creates a Metrics instance with its own registry. Go runtime and
// process collectors are registered alongside the application ones.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		feedbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feedback",
			Name:      "submissions_total",
			Help:      "Feedback submissions by outcome.",
		}, []string{"result"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Sign-in and sign-up attempts by provider and outcome.",
		}, []string{"provider", "result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "uploads_total",
			Help:      "Stored image uploads by attachment kind.",
		}, []string{"kind"}),
		blobsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "blobs_collected_total",
			Help:      "Orphan blobs deleted by the garbage collector.",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connected_clients",
			Help:      "Websocket clients subscribed to feedback streams.",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.feedbacks,
		m.authAttempts,
		m.uploads,
		m.blobsCollected,
		m.streamClients,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies labelled by the matched
// chi route pattern, so ids in paths do not explode label cardinality.
func (m *Metrics) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			// chi reuses a route context found in the request, which lets us
			// read the matched pattern once the router is done.
			rctx := chi.RouteContext(r.Context())
			if rctx == nil {
				rctx = chi.NewRouteContext()
				r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
			}

			rw := middleware.WrapResponseWriter(w)
			start := time.Now()

			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			next.ServeHTTP(rw, r)

			route := rctx.RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.Status())).Inc()
			m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RecordFeedback counts a feedback upsert
func (m *Metrics) RecordFeedback(created bool) {
	result := "updated"
	if created {
		result = "created"
	}
	m.feedbacks.WithLabelValues(result).Inc()
}

// RecordAuth counts a sign-in or sign-up attempt
func (m *Metrics) RecordAuth(provider string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.authAttempts.WithLabelValues(provider, result).Inc()
}

// RecordUpload counts a stored attachment
func (m *Metrics) RecordUpload(kind string) {
	m.uploads.WithLabelValues(kind).Inc()
}

// RecordBlobsCollected adds n to the garbage-collected blob count
func (m *Metrics) RecordBlobsCollected(n int) {
	if n > 0 {
		m.blobsCollected.Add(float64(n))
	}
}

// SetStreamClients reports the number of connected stream clients
func (m *Metrics) SetStreamClients(n int) {
	m.streamClients.Set(float64(n))
}
