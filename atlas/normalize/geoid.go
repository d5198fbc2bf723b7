package normalize

import (
	"fmt"
	"strings"

	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
)

// ExtractGEOID pulls the layer-appropriate GEOID from a feature's property
// bag. The dispatch mirrors the TIGER attribute conventions with fallbacks
// for state portal naming. Returns "" when nothing usable exists.
func ExtractGEOID(layer registry.Layer, f *extract.RawFeature) string {
	direct := f.StringProp("GEOID", "GEOID20", "GEOID10", "geoid", "geoid20")
	switch layer {
	case registry.LayerCongressional:
		if id := pad(direct, 4); id != "" {
			return id
		}
		state := pad(f.StringProp("STATEFP", "STATEFP20", "statefp"), 2)
		district := pad(f.StringProp("CD119FP", "CD118FP", "CDFP", "cd119fp", "district"), 2)
		return join(state, district)
	case registry.LayerStateLegUpper:
		if id := pad(direct, 5); id != "" {
			return id
		}
		state := pad(f.StringProp("STATEFP", "statefp"), 2)
		return join(state, pad(f.StringProp("SLDUST", "sldust"), 3))
	case registry.LayerStateLegLower:
		if id := pad(direct, 5); id != "" {
			return id
		}
		state := pad(f.StringProp("STATEFP", "statefp"), 2)
		return join(state, pad(f.StringProp("SLDLST", "sldlst"), 3))
	case registry.LayerCounty:
		if id := pad(direct, 5); id != "" {
			return id
		}
		state := pad(f.StringProp("STATEFP", "statefp"), 2)
		return join(state, pad(f.StringProp("COUNTYFP", "countyfp"), 3))
	case registry.LayerSchoolUnified:
		return schoolGEOID(f, direct, "UNSDLEA")
	case registry.LayerSchoolElementary:
		return schoolGEOID(f, direct, "ELSDLEA")
	case registry.LayerSchoolSecondary:
		return schoolGEOID(f, direct, "SCSDLEA")
	case registry.LayerPlace:
		if id := pad(direct, 7); id != "" {
			return id
		}
		state := pad(f.StringProp("STATEFP", "statefp"), 2)
		return join(state, pad(f.StringProp("PLACEFP", "placefp"), 5))
	case registry.LayerVTD:
		if direct != "" {
			return direct
		}
		state := pad(f.StringProp("STATEFP20", "STATEFP"), 2)
		county := pad(f.StringProp("COUNTYFP20", "COUNTYFP"), 3)
		vtd := pad(f.StringProp("VTDST20", "VTDST"), 6)
		if state == "" || county == "" || vtd == "" {
			return ""
		}
		return state + county + vtd
	case registry.LayerAIANNH:
		if direct != "" {
			return direct
		}
		return f.StringProp("AIANNHCE", "aiannhce")
	case registry.LayerCouncilDistrict:
		if registry.ValidGEOID(layer, direct) {
			return direct
		}
		place := pad(f.StringProp("PLACEGEOID", "place_geoid", "placefp"), 7)
		district := strings.TrimLeft(f.StringProp("DISTRICT", "district", "WARD", "ward", "COUNCIL_DI", "districtnumber"), "0")
		if place == "" || district == "" {
			return ""
		}
		return place + "-" + district
	}
	return direct
}

func schoolGEOID(f *extract.RawFeature, direct, leaField string) string {
	if id := pad(direct, 7); id != "" {
		return id
	}
	state := pad(f.StringProp("STATEFP", "statefp"), 2)
	lea := pad(f.StringProp(leaField, strings.ToLower(leaField)), 5)
	return join(state, lea)
}

// pad left-pads a non-empty numeric string with zeros to the given width.
// Values wider than the target are returned untouched.
func pad(s string, width int) string {
	if s == "" {
		return ""
	}
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func join(parts ...string) string {
	for _, p := range parts {
		if p == "" {
			return ""
		}
	}
	return strings.Join(parts, "")
}

// SynthesizeGEOID invents a deterministic fallback identifier from the state
// and an insertion sequence when the source carries no usable GEOID. Only
// layers with free-form canonical sets accept synthesized IDs; the fixed
// federal layers would fail completeness anyway.
func SynthesizeGEOID(layer registry.Layer, stateFIPS string, seq int) string {
	switch layer {
	case registry.LayerCouncilDistrict:
		return fmt.Sprintf("%s00000-%d", pad(stateFIPS, 2), seq)
	case registry.LayerVTD:
		return fmt.Sprintf("%s000%06d", pad(stateFIPS, 2), seq)
	default:
		return ""
	}
}
