package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_operations_total",
			Help: "Collection operations by operation and result.",
		},
		[]string{
			"operation",
			"result", // ok, denied, not_found, error
		},
	)
)

func observe[T any](operation string, result Result[T], err error) (Result[T], error) {
	status := string(result.Status)
	if err != nil {
		status = "error"
	}
	metricOperations.WithLabelValues(operation, status).Inc()
	return result, err
}
