package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	unitsFinishedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "atlas_units_finished_total",
			Help: "Count of work units that finished successfully.",
		},
	)
	unitsFailedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "atlas_units_failed_total",
			Help: "Count of work units that failed after retries.",
		},
	)
	rateLimitWaitsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "atlas_rate_limit_waits_total",
			Help: "Count of unit starts delayed by the per-host rate limiter.",
		},
	)
	unitDurationHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atlas_unit_duration_seconds",
			Help:    "End-to-end work unit duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)
