package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_deliveries_total",
		Help: "Patient records written to the queue by status (ok, error)",
	}, []string{"status"})

	metricDeliverMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queue_deliver_duration_ms",
		Help:    "Time to store and rank a patient record",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	metricPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_publish_failures_total",
		Help: "New patient notifications that could not be published",
	})

	metricRemovals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_removals_total",
		Help: "Patients taken out of the queue",
	})
)
