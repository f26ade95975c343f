// Package metrics holds the Prometheus collectors for routing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierroute_route_requests_total",
			Help: "Total number of routed prompts",
		},
		[]string{"tier", "backend", "status"},
	)

	RouteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tierroute_route_latency_seconds",
			Help:    "End-to-end routing latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)

	RouteCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierroute_route_cost_usd_total",
			Help: "Accumulated generation cost in USD",
		},
		[]string{"backend"},
	)

	ClassifierFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tierroute_classifier_fallbacks_total",
			Help: "Adaptive classifications that degraded to the rule evaluator",
		},
	)

	SinkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tierroute_sink_failures_total",
			Help: "Decision records dropped by the sink",
		},
	)

	BackendFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierroute_backend_fallbacks_total",
			Help: "Generation failures cascaded to a higher tier backend",
		},
		[]string{"from", "to"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierroute_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
)
