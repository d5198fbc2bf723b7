package commit

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
	"github.com/shadowatlas/shadow-atlas/shared/mathutil"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/shadowatlas/shadow-atlas/shared/trieutil"
)

// BuildResult is the sealed commitment over a boundary set. The embedded trie
// is owned exclusively by the engine; proof readers borrow immutable views.
type BuildResult struct {
	Root       [32]byte
	Depth      int
	Boundaries []*normalize.Boundary // in leaf order
	LeafHashes [][32]byte
	// Index maps boundary ID to leaf index.
	Index map[string]int
	// LayerOffsets gives the first leaf index of each layer; LayerCounts the
	// number of leaves per layer.
	LayerOffsets map[registry.Layer]int
	LayerCounts  map[registry.Layer]int

	trie   *trieutil.MerkleTrie
	hasher hashutil.Hasher
}

// Build sorts the boundaries lexicographically by (layer, state_fips, id),
// validates every invariant, hashes the leaves and commits the tree at depth
// max(ceil(log2 N), cfg.MinDepth) with sentinel padding.
func Build(boundaries []*normalize.Boundary, cfg params.MerkleConfig, minQuality int, hasher hashutil.Hasher) (*BuildResult, error) {
	if len(boundaries) == 0 {
		return nil, errors.New("cannot commit an empty boundary set")
	}
	if hasher == nil {
		hasher = hashutil.FieldHasher{}
	}

	sorted := make([]*normalize.Boundary, len(boundaries))
	copy(sorted, boundaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortKey() < sorted[j].SortKey()
	})

	index := make(map[string]int, len(sorted))
	layerOffsets := map[registry.Layer]int{}
	layerCounts := map[registry.Layer]int{}
	leaves := make([][32]byte, len(sorted))
	for i, b := range sorted {
		if err := b.Validate(minQuality); err != nil {
			return nil, errors.Wrap(err, "boundary failed admission invariants")
		}
		if _, dup := index[b.ID]; dup {
			return nil, errors.Errorf("duplicate boundary id %q", b.ID)
		}
		index[b.ID] = i
		if _, seen := layerOffsets[b.Layer]; !seen {
			layerOffsets[b.Layer] = i
		}
		layerCounts[b.Layer]++

		leaf, err := LeafHash(b, hasher)
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}

	depth := mathutil.MaxInt(mathutil.CeilLog2(uint64(len(leaves))), cfg.MinDepth)
	trie, err := trieutil.GenerateTrieFromItems(leaves, depth, cfg.SentinelHash, hasher)
	if err != nil {
		return nil, errors.Wrap(err, "could not build Merkle trie")
	}

	result := &BuildResult{
		Root:         trie.Root(),
		Depth:        depth,
		Boundaries:   sorted,
		LeafHashes:   leaves,
		Index:        index,
		LayerOffsets: layerOffsets,
		LayerCounts:  layerCounts,
		trie:         trie,
		hasher:       hasher,
	}
	log.WithFields(map[string]interface{}{
		"leaves": len(leaves),
		"depth":  depth,
	}).Info("Committed boundary set")
	return result, nil
}

// TotalBoundaries in the commitment.
func (r *BuildResult) TotalBoundaries() int {
	return len(r.Boundaries)
}

// BoundaryByID returns the committed boundary for an id.
func (r *BuildResult) BoundaryByID(id string) (*normalize.Boundary, bool) {
	i, ok := r.Index[id]
	if !ok {
		return nil, false
	}
	return r.Boundaries[i], true
}
