package validate

import (
	"fmt"

	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
	"github.com/shadowatlas/shadow-atlas/shared/params"
)

// GEOIDFunc extracts the candidate GEOID for a feature. The normalizer owns
// the dispatch; the gate only needs the string for set comparison.
type GEOIDFunc func(layer registry.Layer, f *extract.RawFeature) string

// Gate runs the per-feature validation stages in order. Semantic scoring and
// edge-case analysis happen earlier, pre-download, at layer granularity.
type Gate struct {
	cfg     *params.AtlasConfig
	geoidOf GEOIDFunc
}

// NewGate builds a gate bound to the pipeline configuration.
func NewGate(cfg *params.AtlasConfig, geoidOf GEOIDFunc) *Gate {
	return &Gate{cfg: cfg, geoidOf: geoidOf}
}

// LayerFilter is the first stage of the gate order: the semantic validator,
// applied pre-download to every candidate layer an extractor discovers.
// Layers scoring under the reject threshold never get fetched; the 30-49
// band is fetched with a warning.
func (g *Gate) LayerFilter(layer registry.Layer) extract.LayerFilter {
	return func(title, description string) bool {
		score := ScoreLayer(layer, title, description)
		if !score.Accepted {
			log.WithFields(map[string]interface{}{
				"layer":    layer,
				"title":    title,
				"score":    score.Score,
				"rejected": score.RejectedBy,
			}).Debug("Layer rejected by semantic validator")
			return false
		}
		if score.Warning {
			log.WithFields(map[string]interface{}{
				"layer": layer,
				"title": title,
				"score": score.Score,
			}).Warn("Layer accepted with a low semantic score")
		}
		return true
	}
}

// Result is the gate outcome for one (layer, state) work unit.
type Result struct {
	Features     []*extract.RawFeature
	Geographic   GeographicReport
	Topology     TopologyReport
	Coordinates  CoordinateReport
	Completeness CompletenessResult
	QualityScore int
	Dropped      int
	Warnings     []string
}

// Run applies geographic, topology, coordinate and completeness checks to
// the unit's features. Survivors come back with the unit's quality score; a
// firing halt gate returns a HaltError and no survivors.
func (g *Gate) Run(layer registry.Layer, stateFIPS string, feats []*extract.RawFeature) (*Result, error) {
	res := &Result{}

	// Wrong-state features are rejected, never halted: the rest of the unit
	// can still be right.
	res.Geographic = CheckGeographic(feats, stateFIPS)
	if res.Geographic.WrongState > 0 {
		kept := make([]*extract.RawFeature, 0, len(feats))
		state, _ := registry.StateByFIPS(stateFIPS)
		box := state.BBox
		for _, f := range feats {
			c := geoutil.Centroid(f.Geometry)
			if c[0] < box[0]-stateBBoxTolerance || c[0] > box[2]+stateBBoxTolerance ||
				c[1] < box[1]-stateBBoxTolerance || c[1] > box[3]+stateBBoxTolerance {
				res.Dropped++
				gateDropCounter.WithLabelValues(string(layer), "geographic").Inc()
				continue
			}
			kept = append(kept, f)
		}
		feats = kept
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("dropped %d likely wrong-state features", res.Geographic.WrongState))
	}

	res.Topology = CheckTopology(feats, g.cfg.MaxInvalidRatio)
	if !res.Topology.Valid && g.cfg.Halt.OnTopology {
		gateHaltCounter.WithLabelValues("topology").Inc()
		return nil, NewHalt("topology", layer, stateFIPS,
			fmt.Sprintf("%d of %d features invalid: %v", res.Topology.Invalid, res.Topology.Total, res.Topology.Issues))
	}
	if res.Topology.Invalid > 0 {
		kept := make([]*extract.RawFeature, 0, len(feats))
		for i, f := range feats {
			if res.Topology.InvalidIndex[i] {
				res.Dropped++
				gateDropCounter.WithLabelValues(string(layer), "topology").Inc()
				continue
			}
			kept = append(kept, f)
		}
		feats = kept
	}

	res.Coordinates = CheckCoordinates(feats, stateFIPS)
	if !res.Coordinates.Valid && g.cfg.Halt.OnCoordinate {
		gateHaltCounter.WithLabelValues("coordinate").Inc()
		return nil, NewHalt("coordinate", layer, stateFIPS,
			fmt.Sprintf("%d features with out-of-range coordinates: %v", res.Coordinates.OutOfRange, res.Coordinates.Issues))
	}
	if res.Coordinates.Suspicious > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d features outside the continental hull", res.Coordinates.Suspicious))
	}

	ids := make([]string, 0, len(feats))
	for _, f := range feats {
		if id := g.geoidOf(layer, f); id != "" {
			ids = append(ids, id)
		}
	}
	res.Completeness = CheckCompleteness(layer, stateFIPS, ids)
	if res.Completeness.Known && !res.Completeness.Valid && g.cfg.Halt.OnCompleteness {
		gateHaltCounter.WithLabelValues("completeness").Inc()
		return nil, NewHalt("completeness", layer, stateFIPS,
			fmt.Sprintf("expected %d, got %d (missing %d, extra %d)",
				res.Completeness.Expected, res.Completeness.Actual,
				len(res.Completeness.Missing), len(res.Completeness.Extra)))
	}
	if res.Completeness.Known && !res.Completeness.Valid {
		res.Warnings = append(res.Warnings, "completeness check failed (halt disabled)")
	}

	pct := res.Completeness.Percentage
	if !res.Completeness.Known {
		// Without a canonical list the completeness term is neutral.
		pct = 100
	}
	res.QualityScore = QualityScore(pct, res.Topology.Valid, res.Coordinates.Valid)
	res.Features = feats
	return res, nil
}
