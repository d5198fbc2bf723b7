// Package trieutil defines a fixed-depth sparse Merkle trie with sentinel
// padding. Leaves are canonical field elements and all interior hashing goes
// through a pluggable field hasher, keeping the structure consumable by a
// zero-knowledge circuit.
package trieutil

import (
	"errors"
	"fmt"

	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
)

var (
	// ErrNoItems is returned when a trie is requested over zero leaves.
	ErrNoItems = errors.New("no items provided to generate Merkle trie")
	// ErrDepthTooSmall is returned when 2^depth cannot hold the leaves.
	ErrDepthTooSmall = errors.New("depth too small for item count")
)

// MerkleTrie implements a sparse, fixed-depth Merkle trie. Unused slots are
// padded with a sentinel hash so the shape is fully determined by the depth.
type MerkleTrie struct {
	depth    uint
	branches [][][32]byte
	items    [][32]byte
	hasher   hashutil.Hasher
	zero     [][32]byte
}

// GenerateTrieFromItems constructs a Merkle trie from a sequence of leaves.
// The sentinel fills every slot past len(items) at the leaf layer; its hash
// ladder fills the upper layers.
func GenerateTrieFromItems(items [][32]byte, depth int, sentinel [32]byte, hasher hashutil.Hasher) (*MerkleTrie, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if depth < 1 || depth > 62 {
		return nil, fmt.Errorf("unsupported trie depth %d", depth)
	}
	if uint64(len(items)) > uint64(1)<<uint(depth) {
		return nil, ErrDepthTooSmall
	}
	if hasher == nil {
		hasher = hashutil.FieldHasher{}
	}

	zero := make([][32]byte, depth+1)
	zero[0] = sentinel
	for i := 0; i < depth; i++ {
		zero[i+1] = hasher.HashElements(zero[i], zero[i])
	}

	layers := make([][][32]byte, depth+1)
	layers[0] = append([][32]byte{}, items...)
	for i := 0; i < depth; i++ {
		if len(layers[i])%2 == 1 {
			layers[i] = append(layers[i], zero[i])
		}
		updated := make([][32]byte, 0, len(layers[i])/2)
		for j := 0; j < len(layers[i]); j += 2 {
			updated = append(updated, hasher.HashElements(layers[i][j], layers[i][j+1]))
		}
		layers[i+1] = updated
	}
	return &MerkleTrie{
		depth:    uint(depth),
		branches: layers,
		items:    append([][32]byte{}, items...),
		hasher:   hasher,
		zero:     zero,
	}, nil
}

// Depth of the trie.
func (m *MerkleTrie) Depth() int {
	return int(m.depth)
}

// NumOfItems returns the number of real (non-sentinel) leaves.
func (m *MerkleTrie) NumOfItems() int {
	return len(m.items)
}

// Items returns the original leaves passed in when creating the trie.
func (m *MerkleTrie) Items() [][32]byte {
	return m.items
}

// Root returns the top-most Merkle root of the trie.
func (m *MerkleTrie) Root() [32]byte {
	return m.branches[len(m.branches)-1][0]
}

// MerkleProof computes the sibling path for the leaf at index.
func (m *MerkleTrie) MerkleProof(index int) ([][32]byte, error) {
	if index < 0 || index >= len(m.items) {
		return nil, fmt.Errorf("merkle index out of range in trie, max range: %d, received: %d", len(m.items), index)
	}
	proof := make([][32]byte, m.depth)
	merkleIndex := uint(index)
	for i := uint(0); i < m.depth; i++ {
		subIndex := (merkleIndex >> i) ^ 1
		if subIndex < uint(len(m.branches[i])) {
			proof[i] = m.branches[i][subIndex]
		} else {
			proof[i] = m.zero[i]
		}
	}
	return proof, nil
}

// PathBits returns, per level, whether the node at that level is a right child.
func PathBits(index, depth int) []bool {
	bits := make([]bool, depth)
	for i := 0; i < depth; i++ {
		bits[i] = (index>>i)&1 == 1
	}
	return bits
}

// VerifyMerkleProof verifies a Merkle branch against the root of a trie by
// folding from the leaf using the index's path bits.
func VerifyMerkleProof(root, leaf [32]byte, index int, proof [][32]byte, hasher hashutil.Hasher) bool {
	if hasher == nil {
		hasher = hashutil.FieldHasher{}
	}
	node := leaf
	for i := 0; i < len(proof); i++ {
		if (index>>i)&1 == 1 {
			node = hasher.HashElements(proof[i], node)
		} else {
			node = hasher.HashElements(node, proof[i])
		}
	}
	return root == node
}
