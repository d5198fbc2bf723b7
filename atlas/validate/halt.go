// Package validate implements the pipeline's validation gates: semantic layer
// classification, edge-case analysis, geographic and topological checks,
// coordinate sanity, and canonical-GEOID completeness. A failing halt gate
// stops the pipeline before anything enters a Merkle tree.
package validate

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "validate")

// HaltError aborts the pipeline. It carries enough context for the operator
// to locate the offending (stage, layer, state) without re-running.
type HaltError struct {
	Stage     string
	Layer     registry.Layer
	StateFIPS string
	Details   string
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("validation halt at %s stage (layer=%s state=%s): %s",
		e.Stage, e.Layer, e.StateFIPS, e.Details)
}

// NewHalt builds a halt error for a gate stage.
func NewHalt(stage string, layer registry.Layer, stateFIPS, details string) *HaltError {
	return &HaltError{Stage: stage, Layer: layer, StateFIPS: stateFIPS, Details: details}
}

// IsHalt reports whether err carries a validation halt.
func IsHalt(err error) bool {
	var halt *HaltError
	return errors.As(err, &halt)
}

// AsHalt extracts the halt error, if any.
func AsHalt(err error) (*HaltError, bool) {
	var halt *HaltError
	if errors.As(err, &halt) {
		return halt, true
	}
	return nil, false
}
