package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal tracks store operations by outcome.
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctgov_store_operations_total",
			Help: "Total number of dataset store operations",
		},
		[]string{"operation", "result"}, // operation: save, load, delete, list; result: ok, miss, error
	)

	// bytesWrittenTotal tracks encoded dataset bytes sent to Redis.
	bytesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctgov_store_bytes_written_total",
			Help: "Total bytes of dataset documents written to Redis",
		},
	)
)

func observe(operation, result string) {
	operationsTotal.WithLabelValues(operation, result).Inc()
}
