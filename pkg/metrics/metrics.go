// Package metrics exposes the Prometheus registry shared by the client and
// store packages. Metrics are declared next to the code that updates them
// and registered through promauto, so importing those packages is enough.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every ctgov metric is added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry holds.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ctgov_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status or error class
//   - ctgov_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ctgov_errors_total{class} (Counter): Errors by class (client, server, status, network, timeout, decode)
//
// Retry Metrics (pkg/client):
//   - ctgov_retries_total{error_class} (Counter): Retry attempts by error class
//   - ctgov_retry_exhausted_total{error_class} (Counter): Requests that used up every attempt
//
// Pagination Metrics (pkg/client):
//   - ctgov_pages_fetched_total (Counter): Pages decoded successfully
//   - ctgov_studies_flattened_total (Counter): Studies turned into rows
//
// Store Metrics (pkg/store):
//   - ctgov_store_operations_total{operation, result} (Counter): save, load, delete, list by ok, miss, error
//   - ctgov_store_bytes_written_total (Counter): Encoded dataset bytes written to Redis
//
// Example Prometheus Queries:
//
//	# Retry rate by class
//	sum by (error_class) (rate(ctgov_retries_total[5m]))
//
//	# Share of requests that gave up
//	sum(rate(ctgov_retry_exhausted_total[5m])) / sum(rate(ctgov_requests_total[5m]))
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(ctgov_request_duration_seconds_bucket[5m]))
//
//	# Dataset misses
//	rate(ctgov_store_operations_total{operation="load",result="miss"}[5m])
