package commit

import (
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/shared/bytesutil"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
	"github.com/shadowatlas/shadow-atlas/shared/trieutil"
)

// ProofTemplate is the server-side half of a Merkle inclusion proof. Clients
// complete it by binding the boundary to their private lookup inside the
// circuit. All hashes are 0x-prefixed hex.
type ProofTemplate struct {
	DistrictID   string   `json:"district_id"`
	MerkleRoot   string   `json:"merkle_root"`
	Siblings     []string `json:"siblings"`
	PathIndices  []int    `json:"path_indices"`
	LeafHash     string   `json:"leaf_hash"`
	BoundaryType string   `json:"boundary_type"`
	Authority    int      `json:"authority"`
	LeafIndex    int      `json:"leaf_index"`
}

// Prove generates the proof template for a boundary ID. Proof generation for
// multiple IDs is independent and safe to parallelize over the immutable
// build result.
func (r *BuildResult) Prove(id string) (*ProofTemplate, error) {
	i, ok := r.Index[id]
	if !ok {
		return nil, errors.Errorf("boundary %q is not in the commitment", id)
	}
	siblings, err := r.trie.MerkleProof(i)
	if err != nil {
		return nil, err
	}
	b := r.Boundaries[i]

	hexSiblings := make([]string, len(siblings))
	for d, s := range siblings {
		hexSiblings[d] = bytesutil.ToHex(s[:])
	}
	bits := trieutil.PathBits(i, r.Depth)
	indices := make([]int, len(bits))
	for d, right := range bits {
		if right {
			indices[d] = 1
		}
	}
	return &ProofTemplate{
		DistrictID:   b.ID,
		MerkleRoot:   bytesutil.ToHex(r.Root[:]),
		Siblings:     hexSiblings,
		PathIndices:  indices,
		LeafHash:     bytesutil.ToHex(r.LeafHashes[i][:]),
		BoundaryType: string(b.Layer),
		Authority:    int(b.Authority),
		LeafIndex:    i,
	}, nil
}

// VerifyProof folds the template from the leaf and accepts iff the recomputed
// root equals the claimed root.
func VerifyProof(t *ProofTemplate, hasher hashutil.Hasher) bool {
	if hasher == nil {
		hasher = hashutil.FieldHasher{}
	}
	root, err := bytesutil.FromHex(t.MerkleRoot)
	if err != nil || len(root) != 32 {
		return false
	}
	leaf, err := bytesutil.FromHex(t.LeafHash)
	if err != nil || len(leaf) != 32 {
		return false
	}
	if len(t.Siblings) != len(t.PathIndices) {
		return false
	}
	proof := make([][32]byte, len(t.Siblings))
	for i, s := range t.Siblings {
		raw, err := bytesutil.FromHex(s)
		if err != nil || len(raw) != 32 {
			return false
		}
		proof[i] = bytesutil.ToBytes32(raw)
	}
	index := 0
	for i, bit := range t.PathIndices {
		if bit != 0 && bit != 1 {
			return false
		}
		if bit == 1 {
			index |= 1 << i
		}
	}
	return trieutil.VerifyMerkleProof(
		bytesutil.ToBytes32(root), bytesutil.ToBytes32(leaf), index, proof, hasher)
}
