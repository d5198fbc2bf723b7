package validate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	semanticRejectCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_semantic_rejects_total",
			Help: "Count of candidate layers rejected by the semantic validator.",
		}, []string{"layer"},
	)
	gateDropCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_gate_dropped_features_total",
			Help: "Count of features dropped by validation gates.",
		}, []string{"layer", "stage"},
	)
	gateHaltCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_gate_halts_total",
			Help: "Count of validation halts by stage.",
		}, []string{"stage"},
	)
)
