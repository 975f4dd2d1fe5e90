// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

// Package metrics defines the Prometheus instrumentation for SkyLens:
// API endpoint latency and throughput, upstream XRPC call outcomes,
// recommendation pipeline behavior, and circuit breaker state.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Upstream XRPC Metrics
	XRPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluesky_xrpc_requests_total",
			Help: "Total number of upstream XRPC calls",
		},
		[]string{"endpoint", "outcome"}, // outcome: "success", "auth_error", "rate_limited", "error"
	)

	XRPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bluesky_xrpc_request_duration_seconds",
			Help:    "Upstream XRPC call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	XRPCRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bluesky_xrpc_retries_total",
			Help: "Total number of XRPC retries after HTTP 429 responses",
		},
		[]string{"endpoint"},
	)

	// Recommendation Pipeline Metrics
	RecommendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"strategy", "outcome"}, // outcome: "success", "config_error", "auth_error", "error"
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_duration_seconds",
			Help:    "End-to-end recommendation pipeline duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)

	FollowFetchTruncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_follow_fetch_truncations_total",
			Help: "Follow-set fetches cut short by an upstream page failure",
		},
	)

	FollowPagesFetched = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_follow_pages_fetched",
			Help:    "Pages fetched per follow-set retrieval",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	HydrationDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_hydration_drops_total",
			Help: "Candidate profiles dropped after failed hydration lookups",
		},
	)

	CandidatesConsidered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_candidates_considered",
			Help:    "Candidates surviving aggregation per request",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Auth Metrics
	AuthLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_active_sessions",
			Help: "Current number of live sessions in the store",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Calls rejected while the circuit breaker was open",
		},
	)
)

// RecordAPIRequest records an API request with its duration.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordXRPCRequest records an upstream XRPC call with its duration.
func RecordXRPCRequest(endpoint, outcome string, duration time.Duration) {
	XRPCRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	XRPCRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments the active request gauge and returns a
// function that decrements it. Intended for use with defer.
func TrackActiveRequest() func() {
	APIActiveRequests.Inc()
	return APIActiveRequests.Dec
}
