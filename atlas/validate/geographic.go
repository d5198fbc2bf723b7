package validate

import (
	"fmt"

	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
)

// stateBBoxTolerance pads the state bounding box before the wrong-state
// check. Empirical; coastal buffers and surveying slack sit inside it.
const stateBBoxTolerance = 0.5

// GeographicReport summarizes the wrong-state check for one work unit.
type GeographicReport struct {
	Total      int
	WrongState int
	Issues     []string
	Valid      bool
}

// CheckGeographic verifies every feature's centroid falls inside the declared
// state's bounding box, padded by the tolerance. Failures mark the unit as
// likely wrong-state data; this gate rejects rather than halts.
func CheckGeographic(feats []*extract.RawFeature, stateFIPS string) GeographicReport {
	report := GeographicReport{Total: len(feats), Valid: true}
	if stateFIPS == "" {
		return report
	}
	state, ok := registry.StateByFIPS(stateFIPS)
	if !ok {
		report.Valid = false
		report.Issues = append(report.Issues, fmt.Sprintf("unknown state fips %q", stateFIPS))
		return report
	}
	box := state.BBox
	for i, f := range feats {
		c := geoutil.Centroid(f.Geometry)
		if c[0] < box[0]-stateBBoxTolerance || c[0] > box[2]+stateBBoxTolerance ||
			c[1] < box[1]-stateBBoxTolerance || c[1] > box[3]+stateBBoxTolerance {
			report.WrongState++
			if len(report.Issues) < 10 {
				report.Issues = append(report.Issues,
					fmt.Sprintf("feature %d centroid (%.4f, %.4f) outside %s bounds", i, c[0], c[1], state.USPS))
			}
		}
	}
	if report.WrongState > 0 {
		report.Valid = false
	}
	return report
}
