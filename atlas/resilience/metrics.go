package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlas_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"endpoint"},
	)
	retryAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_retry_attempts_total",
			Help: "Count of retry attempts by endpoint.",
		}, []string{"endpoint"},
	)
	callOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_outbound_call_total",
			Help: "Count of outbound calls by endpoint and outcome kind.",
		}, []string{"endpoint", "outcome"},
	)
)
