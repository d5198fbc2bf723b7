package snapshot

import (
	"sort"

	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/sliceutil"
)

// computeDiff derives the deterministic difference between two snapshots.
// The operation is antisymmetric: diff(a,b).added == diff(b,a).removed for
// both layers and states.
func computeDiff(from, to *Snapshot) *Diff {
	d := &Diff{
		FromVersion:        from.Version,
		ToVersion:          to.Version,
		MerkleRootChanged:  from.MerkleRoot != to.MerkleRoot,
		TotalBoundaryDelta: to.TotalBoundaries - from.TotalBoundaries,
	}

	for layer, toCount := range to.LayerCounts {
		fromCount, existed := from.LayerCounts[layer]
		if !existed {
			d.LayersAdded = append(d.LayersAdded, registry.Layer(layer))
			continue
		}
		if fromCount != toCount {
			d.LayersModified = append(d.LayersModified, LayerDelta{
				Layer:     registry.Layer(layer),
				FromCount: fromCount,
				ToCount:   toCount,
				Delta:     toCount - fromCount,
			})
		}
	}
	for layer := range from.LayerCounts {
		if _, exists := to.LayerCounts[layer]; !exists {
			d.LayersRemoved = append(d.LayersRemoved, registry.Layer(layer))
		}
	}
	sortLayers(d.LayersAdded)
	sortLayers(d.LayersRemoved)
	sort.Slice(d.LayersModified, func(i, j int) bool {
		return d.LayersModified[i].Layer < d.LayersModified[j].Layer
	})

	d.StatesAdded = sliceutil.SortedStrings(sliceutil.NotStrings(from.StatesIncluded, to.StatesIncluded))
	d.StatesRemoved = sliceutil.SortedStrings(sliceutil.NotStrings(to.StatesIncluded, from.StatesIncluded))
	return d
}
