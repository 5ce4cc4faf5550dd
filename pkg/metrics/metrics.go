package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream call outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeDecode    = "decode_error"
	OutcomeTooLarge  = "too_large"
)

// Registry owns the collectors exported on the metrics endpoint.
type Registry struct {
	reg              *prometheus.Registry
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
}

// NewRegistry builds an isolated registry so tests can create as many as they need.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparky",
			Name:      "upstream_requests_total",
			Help:      "Calls made to the external Sparky service.",
		}, []string{"endpoint", "outcome", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sparky",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of calls to the external Sparky service.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sparky",
			Name:      "http_requests_total",
			Help:      "Requests served by the web front-end.",
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		r.upstreamRequests,
		r.upstreamLatency,
		r.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveUpstream records one settled call to the external service.
// status is 0 when no HTTP response was received.
func (r *Registry) ObserveUpstream(endpoint, outcome string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(endpoint, outcome, strconv.Itoa(status)).Inc()
	r.upstreamLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request. route is the matched pattern, not the raw path.
func (r *Registry) ObserveHTTP(method, route string, status int) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer is exposed for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
