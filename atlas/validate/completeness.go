package validate

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
	"github.com/shadowatlas/shadow-atlas/shared/sliceutil"
)

// CompletenessResult is the canonical-GEOID set comparison for one
// (layer, state) work unit.
type CompletenessResult struct {
	Expected   int
	Actual     int
	Missing    []string
	Extra      []string
	Percentage float64
	Valid      bool
	// Known is false when no canonical list exists for the pair, in which
	// case the gate cannot check and must not halt.
	Known bool
}

// CheckCompleteness compares the actual GEOID set against the canonical list
// for (layer, state). Missing = canonical minus actual; extra = actual minus
// canonical; percentage = |actual ∩ canonical| / |canonical| * 100.
func CheckCompleteness(layer registry.Layer, stateFIPS string, actual []string) CompletenessResult {
	canonical, known := registry.CanonicalGEOIDs(layer, stateFIPS)
	actual = sliceutil.DedupStrings(actual)
	result := CompletenessResult{Actual: len(actual), Known: known}
	if !known {
		result.Valid = true
		return result
	}
	result.Expected = len(canonical)
	result.Missing = sliceutil.SortedStrings(sliceutil.NotStrings(actual, canonical))
	result.Extra = sliceutil.SortedStrings(sliceutil.NotStrings(canonical, actual))
	matched := len(sliceutil.IntersectionStrings(canonical, actual))
	if result.Expected > 0 {
		result.Percentage = float64(matched) / float64(result.Expected) * 100
	}
	result.Valid = len(result.Missing) == 0 && len(result.Extra) == 0
	return result
}

// OverlapViolation reports an illegal same-geometry overlap between an
// elementary and a secondary school district.
type OverlapViolation struct {
	StateFIPS string
	ELSDID    string
	SCSDID    string
	IoU       float64
}

func (v OverlapViolation) String() string {
	return fmt.Sprintf("elsd %s overlaps scsd %s in state %s (IoU %.3f)", v.ELSDID, v.SCSDID, v.StateFIPS, v.IoU)
}

// schoolOverlapIoU is the similarity above which two school district
// geometries count as covering the same territory.
const schoolOverlapIoU = 0.9

// CheckSchoolOverlap enforces the dual-system policy: in the nine dual-system
// states, ELSD and SCSD districts legally cover the same territory and no
// overlap is reported; in every other state, same-geometry ELSD/SCSD overlap
// is an error.
func CheckSchoolOverlap(stateFIPS string, elsd, scsd map[string]orb.Geometry) []OverlapViolation {
	if registry.IsDualSystemState(stateFIPS) {
		return nil
	}
	var out []OverlapViolation
	for eid, eg := range elsd {
		for sid, sg := range scsd {
			if eg == nil || sg == nil {
				continue
			}
			if !eg.Bound().Intersects(sg.Bound()) {
				continue
			}
			iou := geoutil.IoU(eg, sg)
			if iou >= schoolOverlapIoU {
				out = append(out, OverlapViolation{
					StateFIPS: stateFIPS,
					ELSDID:    eid,
					SCSDID:    sid,
					IoU:       iou,
				})
			}
		}
	}
	return out
}
