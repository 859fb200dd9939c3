// Package metrics holds the prometheus collectors exported by findly serve.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts calls to third-party APIs by service and outcome
	// (ok, status, error).
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "findly",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to third-party APIs.",
		},
		[]string{"service", "outcome"},
	)

	// RateCacheLookups counts exchange rate cache lookups (hit, stale, miss).
	RateCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "findly",
			Name:      "rate_cache_lookups_total",
			Help:      "Exchange rate cache lookups by result.",
		},
		[]string{"result"},
	)

	// Searches counts image searches by outcome (found, no_match, error).
	Searches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "findly",
			Name:      "searches_total",
			Help:      "Image searches by outcome.",
		},
		[]string{"outcome"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "findly",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)
)
