package persistence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDumps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_persistence_dumps_total",
			Help: "Number of dump passes over the dirty collections.",
		},
	)
	metricCollectionWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_persistence_collection_writes_total",
			Help: "Collection snapshot writes by result.",
		},
		[]string{
			"result", // ok, error
		},
	)
	metricDumpDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docstore_persistence_dump_duration_seconds",
			Help:    "Duration of a dump pass in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5, 10, 20, 30},
		},
	)
)
