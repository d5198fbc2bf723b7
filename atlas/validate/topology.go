package validate

import (
	"fmt"

	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
)

// TopologyReport summarizes ring-level geometry checks for one work unit.
type TopologyReport struct {
	Total   int
	Invalid int
	Issues  []string
	Valid   bool
	// InvalidIndex marks which features failed, so the gate can drop them
	// when the invalid ratio stays under threshold.
	InvalidIndex map[int]bool
}

// CheckTopology verifies non-empty geometry, closed rings with at least four
// vertices, coordinate finiteness, and absence of ring self-intersection.
// The report is valid while invalid/total stays within maxInvalidRatio.
func CheckTopology(feats []*extract.RawFeature, maxInvalidRatio float64) TopologyReport {
	report := TopologyReport{
		Total:        len(feats),
		Valid:        true,
		InvalidIndex: map[int]bool{},
	}
	for i, f := range feats {
		if issue := topologyIssue(f); issue != "" {
			report.Invalid++
			report.InvalidIndex[i] = true
			if len(report.Issues) < 10 {
				report.Issues = append(report.Issues, fmt.Sprintf("feature %d: %s", i, issue))
			}
		}
	}
	if report.Total > 0 {
		ratio := float64(report.Invalid) / float64(report.Total)
		report.Valid = ratio <= maxInvalidRatio
	}
	return report
}

func topologyIssue(f *extract.RawFeature) string {
	if f.Geometry == nil || geoutil.IsEmpty(f.Geometry) {
		return "empty geometry"
	}
	if !geoutil.IsPolygonal(f.Geometry) {
		return "non-polygonal geometry"
	}
	if !geoutil.Finite(f.Geometry) {
		return "non-finite coordinate"
	}
	for pi, poly := range geoutil.Polygons(f.Geometry) {
		for ri, ring := range poly {
			if len(ring) < geoutil.MinRingVertices {
				return fmt.Sprintf("polygon %d ring %d has %d vertices", pi, ri, len(ring))
			}
			if !geoutil.RingClosed(ring) {
				return fmt.Sprintf("polygon %d ring %d is not closed", pi, ri)
			}
			if geoutil.SelfIntersects(ring) {
				return fmt.Sprintf("polygon %d ring %d self-intersects", pi, ri)
			}
		}
	}
	return ""
}
