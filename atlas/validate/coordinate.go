package validate

import (
	"fmt"

	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
)

// continentalTolerance pads the continental-US hull before the suspicion flag.
const continentalTolerance = 0.5

// CoordinateReport summarizes coordinate-range checks for one work unit.
type CoordinateReport struct {
	Total      int
	OutOfRange int
	Suspicious int
	Issues     []string
	Valid      bool
}

// CheckCoordinates verifies every coordinate is finite and inside WGS84
// range. Coordinates outside the padded continental hull are flagged as
// suspicious unless the state is a territory; suspicion alone never fails
// the report.
func CheckCoordinates(feats []*extract.RawFeature, stateFIPS string) CoordinateReport {
	report := CoordinateReport{Total: len(feats), Valid: true}
	territory := registry.IsTerritory(stateFIPS)
	hull := registry.ContinentalUSBBox
	for i, f := range feats {
		if !geoutil.Finite(f.Geometry) || !geoutil.InWGS84Range(f.Geometry) {
			report.OutOfRange++
			if len(report.Issues) < 10 {
				report.Issues = append(report.Issues, fmt.Sprintf("feature %d has out-of-range coordinates", i))
			}
			continue
		}
		if territory {
			continue
		}
		b := geoutil.BBox(f.Geometry)
		if b[0] < hull[0]-continentalTolerance || b[2] > hull[2]+continentalTolerance ||
			b[1] < hull[1]-continentalTolerance || b[3] > hull[3]+continentalTolerance {
			report.Suspicious++
		}
	}
	report.Valid = report.OutOfRange == 0
	return report
}
