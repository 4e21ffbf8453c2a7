// Package metrics exposes the Prometheus registry of the aggregator service
// and instruments its HTTP surface.
// Upstream, aggregation and error budget metrics are defined in their
// respective packages (client, pagination, ratelimit) to keep them modular.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_http_requests_total",
		Help: "Total HTTP requests served by route and status",
	}, []string{"route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by route",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"route"})
)

// Handler serves the metrics of Gatherer in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and duration per chi route pattern.
// Unmatched requests are recorded under "unmatched".
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Metrics Documentation
//
// HTTP Metrics (pkg/metrics):
//   - swapi_http_requests_total{route, status} (Counter): Requests served by route pattern and status
//   - swapi_http_request_duration_seconds{route} (Histogram): Request duration by route pattern
//
// Request Metrics (pkg/client):
//   - swapi_requests_total{collection, status} (Counter): Upstream requests by collection and HTTP status
//   - swapi_request_duration_seconds{collection} (Histogram): Upstream request duration
//   - swapi_errors_total{class} (Counter): Upstream errors by class (client, server, network, decode, blocked)
//
// Aggregation Metrics (pkg/pagination):
//   - swapi_aggregations_total{collection, strategy, result} (Counter): Aggregation runs
//   - swapi_aggregation_pages{strategy} (Histogram): Pages per successful run
//   - swapi_aggregation_duration_seconds{strategy} (Histogram): Run duration
//
// Error Budget Metrics (pkg/ratelimit):
//   - swapi_errors_remaining (Gauge): Failures remaining in the current budget window
//   - swapi_error_budget_blocks_total (Counter): Requests blocked on an exhausted budget
//   - swapi_error_budget_throttles_total (Counter): Requests throttled on a low budget
//   - swapi_error_budget_failures_total (Counter): Failures recorded against the budget
//
// Example Prometheus Queries:
//
//   # Upstream error rate
//   rate(swapi_errors_total[5m])
//
//   # Failed aggregation ratio
//   sum(rate(swapi_aggregations_total{result="error"}[5m])) /
//   sum(rate(swapi_aggregations_total[5m]))
//
//   # Error budget status
//   swapi_errors_remaining < 20
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(swapi_request_duration_seconds_bucket[5m]))
//
//   # P95 latency of the residents view
//   histogram_quantile(0.95, rate(swapi_http_request_duration_seconds_bucket{route="/planet-residents/"}[5m]))
