package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for registry requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_requests_total",
		Help: "Total registry requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ctgov_request_duration_seconds",
		Help:    "Registry request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_errors_total",
		Help: "Total registry errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_retries_total",
		Help: "Total retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctgov_retry_exhausted_total",
		Help: "Total requests that used up every attempt, by error class",
	}, []string{"error_class"})

	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_pages_fetched_total",
		Help: "Total study pages fetched",
	})

	studiesFlattenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ctgov_studies_flattened_total",
		Help: "Total studies flattened into records",
	})
)
