package crossval

import (
	"sort"

	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/params"
)

// Reconcile folds a multi-source boundary stream into one boundary per ID.
// Where two sources cover the same (layer, state), the pair is cross
// validated and the higher-authority version of each boundary wins. The
// cross validator never halts; disagreements surface in the reports.
func Reconcile(boundaries []*normalize.Boundary, cfg params.CrossConfig) ([]*normalize.Boundary, []*Report) {
	type groupKey struct {
		layer registry.Layer
		state string
	}
	groups := map[groupKey][]*normalize.Boundary{}
	var keys []groupKey
	for _, b := range boundaries {
		k := groupKey{layer: b.Layer, state: b.StateFIPS}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], b)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].layer != keys[j].layer {
			return keys[i].layer < keys[j].layer
		}
		return keys[i].state < keys[j].state
	})

	var out []*normalize.Boundary
	var reports []*Report
	for _, k := range keys {
		group := groups[k]

		// Partition by authority tier, most authoritative first.
		byTier := map[registry.AuthorityTier][]*normalize.Boundary{}
		var tiers []registry.AuthorityTier
		for _, b := range group {
			if _, seen := byTier[b.Authority]; !seen {
				tiers = append(tiers, b.Authority)
			}
			byTier[b.Authority] = append(byTier[b.Authority], b)
		}
		sort.Slice(tiers, func(i, j int) bool { return tiers[i] > tiers[j] })

		primary := byTier[tiers[0]]
		for _, tier := range tiers[1:] {
			secondary := byTier[tier]
			report := Compare(k.layer, k.state, primary, secondary)
			reports = append(reports, report)
			if report.QualityScore < cfg.MinOverlapPercent {
				log.WithFields(map[string]interface{}{
					"layer":   k.layer,
					"state":   k.state,
					"quality": report.QualityScore,
				}).Warn("Cross-source agreement below threshold")
			}
		}

		// Highest authority wins per ID; within a tier, first in sorted
		// order wins so the output is deterministic.
		seen := map[string]bool{}
		for _, tier := range tiers {
			tierSet := append([]*normalize.Boundary{}, byTier[tier]...)
			sort.SliceStable(tierSet, func(i, j int) bool { return tierSet[i].ID < tierSet[j].ID })
			for _, b := range tierSet {
				if seen[b.ID] {
					continue
				}
				seen[b.ID] = true
				out = append(out, b)
			}
		}
	}
	return out, reports
}
