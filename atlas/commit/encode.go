// Package commit is the commitment engine: it builds the deterministic,
// fixed-depth Merkle tree over normalized boundaries and produces the proof
// templates the zero-knowledge circuit consumes.
package commit

import (
	"fmt"

	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "commit")

// DeterminismError is an internal assertion failure: a non-canonical leaf
// encoding or two builds of the same input disagreeing. Always fatal; there
// is no recovery that preserves the tree's guarantees.
type DeterminismError struct {
	Detail string
}

func (e *DeterminismError) Error() string {
	return fmt.Sprintf("determinism violation: %s", e.Detail)
}

// LeafHash computes the canonical leaf for a boundary:
//
//	H( H(id) ‖ layer_tag ‖ authority ‖ H(geometry_bytes) ‖ H(provenance_digest) )
//
// over field elements. Layer and authority are committed, so two otherwise
// identical boundaries with different tags hash differently; provenance is
// committed, so a changed source content hash changes the leaf.
func LeafHash(b *normalize.Boundary, hasher hashutil.Hasher) ([32]byte, error) {
	if hasher == nil {
		hasher = hashutil.FieldHasher{}
	}
	geomBytes, err := geoutil.CanonicalBytes(b.Geometry)
	if err != nil {
		return [32]byte{}, err
	}

	idElem := hasher.ToElement([]byte(b.ID))
	layerElem := hasher.ToElement([]byte(b.Layer))
	authorityElem := uintElement(uint64(b.Authority))
	geomElem := hasher.ToElement(geomBytes)
	provElem := hasher.ToElement(b.ProvenanceDigest[:])

	for _, elem := range [][32]byte{idElem, layerElem, authorityElem, geomElem, provElem} {
		if err := assertCanonical(elem); err != nil {
			return [32]byte{}, err
		}
	}
	return hasher.HashElements(idElem, layerElem, authorityElem, geomElem, provElem), nil
}

// uintElement encodes an unsigned integer as a canonical field element.
func uintElement(v uint64) [32]byte {
	var out [32]byte
	for i := 0; i < 8; i++ {
		out[31-i] = byte(v >> (8 * i))
	}
	return out
}

// assertCanonical verifies the element fits the 254-bit field encoding.
func assertCanonical(elem [32]byte) error {
	if elem[0]&0xe0 != 0 {
		return &DeterminismError{Detail: "field element exceeds canonical range"}
	}
	return nil
}
