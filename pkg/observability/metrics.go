// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the vetora API.
package observability

import "github.com/prometheus/client_golang/prometheus"

// APIBuckets defines histogram buckets for API request latencies, ranging
// from 5ms to 10s.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetora_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vetora_request_duration_seconds",
			Help:    "Request duration",
			Buckets: APIBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vetora_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// AuthDecisionsTotal counts authorization gate outcomes. The outcome
	// label is "allowed" or the error code that denied the call.
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetora_auth_decisions_total",
			Help: "Authorization decisions",
		},
		[]string{"outcome"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetora_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"limit_type"},
	)

	// RoleCoercionsTotal counts profiles whose stored role was not
	// recognized and was treated as owner.
	RoleCoercionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vetora_role_coercions_total",
			Help: "Unrecognized profile roles coerced to owner",
		},
	)

	// AdmissionsTotal counts admission attempts by result.
	AdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetora_admissions_total",
			Help: "Hospital admissions",
		},
		[]string{"result"},
	)

	// DischargesTotal counts completed discharges by final status.
	DischargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetora_discharges_total",
			Help: "Hospital discharges",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		AuthDecisionsTotal,
		RateLimitRejectedTotal,
		RoleCoercionsTotal,
		AdmissionsTotal,
		DischargesTotal,
	)
}
