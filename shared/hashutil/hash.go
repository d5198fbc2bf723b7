// Package hashutil includes all hash-function related helpers for the atlas.
// Leaf material destined for the zero-knowledge circuit is hashed over field
// elements; raw artifact content is hashed with SHA-256.
package hashutil

import (
	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// FieldElementLength is the canonical byte length of a single field element.
const FieldElementLength = 32

// Hash defines a function that returns the Keccak-256/SHA3 hash of the data passed in.
func Hash(data []byte) [32]byte {
	var hash [32]byte

	h := sha3.NewLegacyKeccak256()
	// The hash interface never returns an error, for that reason
	// we are not handling the error below. For reference, it is
	// stated here https://golang.org/pkg/hash/#Hash
	// #nosec G104
	h.Write(data)
	h.Sum(hash[:0])

	return hash
}

// HashSHA256 returns the SHA-256 digest of the data passed in. Used for
// artifact content addressing, where circuit friendliness does not matter.
func HashSHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Hasher hashes canonical field elements. The default implementation maps
// Keccak-256 output into the field; integrators replace it with a circuit
// native permutation (e.g. Poseidon) without touching the tree code.
type Hasher interface {
	// HashElements hashes the concatenation of field elements into one element.
	HashElements(elems ...[32]byte) [32]byte
	// ToElement maps arbitrary bytes to one canonical field element.
	ToElement(data []byte) [32]byte
}

// FieldHasher is the default Hasher.
type FieldHasher struct{}

var _ = Hasher(&FieldHasher{})

// HashElements hashes the concatenation of the canonical encodings.
func (FieldHasher) HashElements(elems ...[32]byte) [32]byte {
	data := make([]byte, 0, len(elems)*FieldElementLength)
	for _, e := range elems {
		data = append(data, e[:]...)
	}
	return reduce(Hash(data))
}

// ToElement maps arbitrary bytes to one canonical field element.
func (FieldHasher) ToElement(data []byte) [32]byte {
	return reduce(Hash(data))
}

// reduce clears the top three bits so the big-endian value always fits a
// 254-bit prime field. The encoding stays canonical: one byte string per element.
func reduce(h [32]byte) [32]byte {
	h[0] &= 0x1f
	return h
}
