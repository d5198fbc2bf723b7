package validate

import (
	"strings"

	"github.com/shadowatlas/shadow-atlas/atlas/registry"
)

// Semantic scoring thresholds.
const (
	// SemanticRejectBelow rejects a layer pre-download.
	SemanticRejectBelow = 30
	// SemanticCleanAt accepts a layer without a warning flag.
	SemanticCleanAt = 50
)

// councilNegativeKeywords hard-reject a candidate layer title regardless of
// anything else it matches. The list applies only when hunting council
// districts, because a school district is a false positive only there.
var councilNegativeKeywords = []string{
	"voting precinct",
	"precinct",
	"tree canopy",
	"zoning overlay",
	"zoning",
	"parcel",
	"polling",
	"school district",
	"fire district",
	"police district",
	"congressional district",
	"census tract",
	"census block",
	"sewer",
	"watershed",
	"garbage",
	"trash",
	"snow",
	"historic district",
	"improvement district",
	"tax district",
}

// councilRequiredPositives: at least one must match for any score above the reject
// threshold.
var councilRequiredPositives = []string{
	"city council",
	"council district",
	"ward",
	"alderman",
	"aldermanic",
	"supervisor district",
	"commission district",
}

// councilWeakPositives add small weights on top of a required match.
var councilWeakPositives = map[string]int{
	"council":        10,
	"district":       10,
	"ward":           10,
	"electoral":      5,
	"representative": 5,
	"member":         3,
	"boundary":       3,
}

// SemanticScore is the outcome of scoring one candidate layer.
type SemanticScore struct {
	Score    int
	Warning  bool
	Accepted bool
	// RejectedBy names the negative keyword that zeroed the score, if any.
	RejectedBy string
	// Matched lists the positive patterns that contributed.
	Matched []string
}

// ScoreLayer scores a candidate layer's title and description against the
// keyword tables for the target layer. Only municipal council hunting uses
// the full cascade; authoritative layers (TIGER et al.) carry their layer
// identity in the source descriptor and score clean.
func ScoreLayer(target registry.Layer, title, description string) SemanticScore {
	if target != registry.LayerCouncilDistrict {
		return SemanticScore{Score: 100, Accepted: true}
	}
	text := strings.ToLower(title + " " + description)

	for _, neg := range councilNegativeKeywords {
		if strings.Contains(text, neg) {
			semanticRejectCounter.WithLabelValues(string(target)).Inc()
			return SemanticScore{Score: 0, RejectedBy: neg}
		}
	}

	score := 0
	var matched []string
	hasRequired := false
	for _, pos := range councilRequiredPositives {
		if strings.Contains(text, pos) {
			hasRequired = true
			matched = append(matched, pos)
			score += 40
			break
		}
	}
	for weak, weight := range councilWeakPositives {
		if strings.Contains(text, weak) {
			matched = append(matched, weak)
			score += weight
		}
	}
	if !hasRequired && score >= SemanticRejectBelow {
		// Weak matches alone cannot clear the bar.
		score = SemanticRejectBelow - 1
	}
	if score > 100 {
		score = 100
	}

	out := SemanticScore{Score: score, Matched: matched}
	if score < SemanticRejectBelow {
		semanticRejectCounter.WithLabelValues(string(target)).Inc()
		return out
	}
	out.Accepted = true
	out.Warning = score < SemanticCleanAt
	return out
}
