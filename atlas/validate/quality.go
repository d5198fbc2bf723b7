package validate

import "math"

// QualityScore folds the gate outcomes into the 0-100 score carried on every
// normalized boundary: 40% completeness, 35% topology, 25% coordinates.
func QualityScore(completenessPct float64, topologyValid, coordinatesValid bool) int {
	topo := 0.0
	if topologyValid {
		topo = 100
	}
	coord := 0.0
	if coordinatesValid {
		coord = 100
	}
	score := 0.4*completenessPct + 0.35*topo + 0.25*coord
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}
