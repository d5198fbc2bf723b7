// Package scheduler fans the source registry out into work units, drives
// them through extraction and the validation gate under bounded parallelism,
// and aggregates the surviving normalized boundaries.
package scheduler

import (
	"fmt"

	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "scheduler")

// WorkUnit is one (source, layer, state?) extraction task.
type WorkUnit struct {
	Source    *registry.SourceDescriptor
	StateFIPS string // empty for nationwide sources
}

// ID renders a stable identifier for logs and progress events.
func (u *WorkUnit) ID() string {
	if u.StateFIPS == "" {
		return u.Source.ID
	}
	return fmt.Sprintf("%s/%s", u.Source.ID, u.StateFIPS)
}

// UnitStatus tracks a unit through the progress stream.
type UnitStatus int

// Progress statuses.
const (
	UnitStarted UnitStatus = iota
	UnitFinished
	UnitFailed
)

func (s UnitStatus) String() string {
	switch s {
	case UnitStarted:
		return "started"
	case UnitFinished:
		return "finished"
	case UnitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressEvent is published for every unit transition.
type ProgressEvent struct {
	Unit     *WorkUnit
	Status   UnitStatus
	Features int
	Err      error
}

// SourceFailure records a unit that failed after exhausting retries. The
// pipeline continues past these; they surface on the final result.
type SourceFailure struct {
	Unit *WorkUnit
	Err  error
}
