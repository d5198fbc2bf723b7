package validate

import (
	"strings"
)

// Classification is the edge-case analyzer's verdict on a candidate layer.
type Classification int

// Edge-case classifications.
const (
	Unknown Classification = iota
	TruePositive
	FalsePositiveService
	FalsePositiveProperty
	FalsePositiveInfra
	FalsePositiveCensus
	FalsePositiveSchool
	AmbiguousBOS
	AmbiguousWard
	HistoricalVersion
	AggregatedData
)

func (c Classification) String() string {
	switch c {
	case TruePositive:
		return "TRUE_POSITIVE"
	case FalsePositiveService:
		return "FALSE_POSITIVE_SERVICE"
	case FalsePositiveProperty:
		return "FALSE_POSITIVE_PROPERTY"
	case FalsePositiveInfra:
		return "FALSE_POSITIVE_INFRA"
	case FalsePositiveCensus:
		return "FALSE_POSITIVE_CENSUS"
	case FalsePositiveSchool:
		return "FALSE_POSITIVE_SCHOOL"
	case AmbiguousBOS:
		return "AMBIGUOUS_BOS"
	case AmbiguousWard:
		return "AMBIGUOUS_WARD"
	case HistoricalVersion:
		return "HISTORICAL_VERSION"
	case AggregatedData:
		return "AGGREGATED_DATA"
	default:
		return "UNKNOWN"
	}
}

// Action is what the pipeline does with a classified candidate.
type Action int

// Analyzer actions.
const (
	ActionAccept Action = iota
	ActionReject
	ActionNeedsCityContext
	ActionNeedsManualReview
)

func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "ACCEPT"
	case ActionReject:
		return "REJECT"
	case ActionNeedsCityContext:
		return "NEEDS_CITY_CONTEXT"
	case ActionNeedsManualReview:
		return "NEEDS_MANUAL_REVIEW"
	default:
		return "UNKNOWN"
	}
}

// Candidate describes a layer for edge-case analysis.
type Candidate struct {
	LayerName    string
	URLPath      string
	VintageYear  int
	CurrentYear  int
	FeatureCount int
}

// Municipal council feature-count heuristics. No U.S. city council exceeds
// 51 seats (New York); counts past 100 mean the layer is a different
// granularity entirely (precincts, parcels).
const (
	councilCountWarn   = 60
	councilCountReject = 100
	// historicalAgeYears flags stale vintages.
	historicalAgeYears = 5
)

// placeholderCounts observed in portal metadata that mean "unknown", not a
// real count. The analyzer must flag these for review, never reject on them.
var placeholderCounts = map[int]bool{1000: true, 2000: true}

// Verdict bundles the classification with the action.
type Verdict struct {
	Classification Classification
	Action         Action
	Notes          []string
}

// AnalyzeCouncilCandidate runs the rule cascade over a municipal council
// district candidate layer. Rules fire in priority order; the first decisive
// rule wins.
func AnalyzeCouncilCandidate(c Candidate) Verdict {
	name := strings.ToLower(c.LayerName)
	path := strings.ToLower(c.URLPath)
	text := name + " " + path

	// Service-territory layers dressed as districts.
	for _, kw := range []string{"service area", "service district", "utility", "water district", "sewer district"} {
		if strings.Contains(text, kw) {
			return verdict(FalsePositiveService, ActionReject, "service territory keyword: "+kw)
		}
	}
	// Property and land records.
	for _, kw := range []string{"parcel", "lot line", "assessor", "property"} {
		if strings.Contains(text, kw) {
			return verdict(FalsePositiveProperty, ActionReject, "property record keyword: "+kw)
		}
	}
	// Infrastructure layers.
	for _, kw := range []string{"street", "sidewalk", "pavement", "sewer", "storm", "light"} {
		if strings.Contains(text, kw) {
			return verdict(FalsePositiveInfra, ActionReject, "infrastructure keyword: "+kw)
		}
	}
	// Census products republished by cities.
	for _, kw := range []string{"census tract", "census block", "block group", "tabulation"} {
		if strings.Contains(text, kw) {
			return verdict(FalsePositiveCensus, ActionReject, "census product keyword: "+kw)
		}
	}
	// School boards masquerading as council districts.
	for _, kw := range []string{"school", "board of education", "isd "} {
		if strings.Contains(text, kw) {
			return verdict(FalsePositiveSchool, ActionReject, "school keyword: "+kw)
		}
	}
	// Board-of-supervisors layers are county-level in some states and
	// city-level in others; the city context disambiguates.
	if strings.Contains(text, "board of supervisors") || strings.Contains(text, "supervisorial") {
		return verdict(AmbiguousBOS, ActionNeedsCityContext, "board of supervisors requires city context")
	}
	// Wards are council districts in most cities but voting wards in a few.
	if strings.Contains(text, "ward") && !strings.Contains(text, "council") {
		return verdict(AmbiguousWard, ActionNeedsCityContext, "bare ward naming requires city context")
	}
	// Stale vintages (often pre-redistricting geometry).
	if c.VintageYear > 0 && c.CurrentYear-c.VintageYear >= historicalAgeYears {
		return verdict(HistoricalVersion, ActionNeedsManualReview, "vintage older than redistricting cycle")
	}
	// Counts: placeholders flag for review, oversized counts reject.
	if placeholderCounts[c.FeatureCount] {
		return verdict(Unknown, ActionNeedsManualReview, "placeholder feature count")
	}
	if c.FeatureCount > councilCountReject {
		return verdict(AggregatedData, ActionReject, "feature count exceeds any council size")
	}
	v := verdict(TruePositive, ActionAccept)
	if c.FeatureCount > councilCountWarn {
		v.Notes = append(v.Notes, "feature count unusually high for a council")
	}
	return v
}

func verdict(c Classification, a Action, notes ...string) Verdict {
	return Verdict{Classification: c, Action: a, Notes: notes}
}
