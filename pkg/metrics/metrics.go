// Package metrics holds the service's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

// Registry holds every collector of this package plus the Go runtime ones.
var Registry = prometheus.NewRegistry()

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "graphapi_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graphapi_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	}, []string{"method", "route"})

	storeOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "graphapi_store_operations_total",
		Help: "Collection store operations by kind, operation and result code",
	}, []string{"kind", "op", "code"})

	storeOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graphapi_store_operation_duration_seconds",
		Help:    "Collection store operation latency including lock wait and persistence",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"kind", "op"})

	renderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graphapi_render_duration_seconds",
		Help:    "Render pipeline stage latency",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"stage", "result"})

	breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "graphapi_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	renderJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "graphapi_render_jobs_total",
		Help: "Async render jobs by outcome",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequestsTotal,
		httpRequestDuration,
		storeOpsTotal,
		storeOpDuration,
		renderDuration,
		breakerState,
		renderJobsTotal,
	)
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// RecordHTTP records one served request. route is the matched pattern, not
// the raw path.
func RecordHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordRender records one render pipeline stage.
func RecordRender(stage string, err error, elapsed time.Duration) {
	renderDuration.WithLabelValues(stage, result(err)).Observe(elapsed.Seconds())
}

// RecordRenderJob counts job outcomes: enqueued, deduplicated, done, failed.
func RecordRenderJob(outcome string) {
	renderJobsTotal.WithLabelValues(outcome).Inc()
}

// SetBreakerState publishes a circuit breaker state.
func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// StoreObserver feeds collection store operations into the registry.
type StoreObserver struct{}

func (StoreObserver) ObserveStoreOp(kind, op string, err error, elapsed time.Duration) {
	storeOpsTotal.WithLabelValues(kind, op, result(err)).Inc()
	storeOpDuration.WithLabelValues(kind, op).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return string(appErr.CodeOf(err))
}
