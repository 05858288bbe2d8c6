package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mindsight",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindsight",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mindsight",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "route"},
	)

	annotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindsight",
			Subsystem: "annotation",
			Name:      "attempts_total",
			Help:      "Annotation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	annotationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mindsight",
			Subsystem: "annotation",
			Name:      "duration_seconds",
			Help:      "Duration of annotation attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms to ~12.8s
		},
	)

	entriesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mindsight",
			Subsystem: "entries",
			Name:      "created_total",
			Help:      "Journal entries created.",
		},
	)

	entriesDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mindsight",
			Subsystem: "entries",
			Name:      "deleted_total",
			Help:      "Journal entries deleted.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		annotations,
		annotationDuration,
		entriesCreated,
		entriesDeleted,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// Requests are labelled by chi route pattern to keep cardinality bounded.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAnnotation records the outcome of one annotation attempt.
func ObserveAnnotation(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	annotations.WithLabelValues(outcome).Inc()
	annotationDuration.Observe(duration.Seconds())
}

func RecordEntryCreated() {
	entriesCreated.Inc()
}

func RecordEntryDeleted() {
	entriesDeleted.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
