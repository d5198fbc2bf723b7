// Package normalize turns validated raw features into canonical boundaries:
// the immutable unit the commitment engine operates on.
package normalize

import (
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "normalize")

// Provenance is the source-binding record stamped onto every boundary. The
// fetch wall clock never reaches the leaf hash; time enters only through the
// source's Last-Modified header.
type Provenance struct {
	SourceURL      string `json:"source_url"`
	ContentHash    string `json:"content_hash"`
	LastModified   string `json:"last_modified,omitempty"`
	Provider       string `json:"provider"`
	Vintage        int    `json:"vintage"`
	AuthorityLabel string `json:"authority_label"`
	Licence        string `json:"licence"`
}

// Boundary is the canonical normalized unit. Created here, mutated by no
// one, consumed by the Merkle builder.
type Boundary struct {
	ID        string
	Name      string
	Layer     registry.Layer
	StateFIPS string
	Geometry  orb.Geometry
	BBox      [4]float64
	Authority registry.AuthorityTier

	Provenance       Provenance
	ProvenanceDigest [32]byte

	QualityScore int
	// Override admits a boundary below the quality floor after manual review.
	Override bool

	// Synthesized marks IDs invented because the source had none.
	Synthesized bool
}

// minQualityDefault is the admission floor when the caller does not supply one.
const minQualityDefault = 70

// Validate enforces every invariant a boundary must satisfy before it may
// enter a Merkle tree.
func (b *Boundary) Validate(minQuality int) error {
	if minQuality <= 0 {
		minQuality = minQualityDefault
	}
	if !registry.ValidGEOID(b.Layer, b.ID) {
		return errors.Errorf("boundary id %q does not match %s GEOID format", b.ID, b.Layer)
	}
	if b.StateFIPS != "" && !registry.KnownStateFIPS(b.StateFIPS) {
		return errors.Errorf("boundary %s has unrecognised state fips %q", b.ID, b.StateFIPS)
	}
	if b.Geometry == nil || geoutil.IsEmpty(b.Geometry) {
		return errors.Errorf("boundary %s has empty geometry", b.ID)
	}
	if !geoutil.Finite(b.Geometry) || !geoutil.InWGS84Range(b.Geometry) {
		return errors.Errorf("boundary %s has out-of-range coordinates", b.ID)
	}
	for _, poly := range geoutil.Polygons(b.Geometry) {
		for _, ring := range poly {
			if len(ring) < geoutil.MinRingVertices {
				return errors.Errorf("boundary %s has a ring with %d vertices", b.ID, len(ring))
			}
			if !geoutil.RingClosed(ring) {
				return errors.Errorf("boundary %s has an unclosed ring", b.ID)
			}
			if geoutil.SelfIntersects(ring) {
				return errors.Errorf("boundary %s has a self-intersecting ring", b.ID)
			}
		}
	}
	if b.QualityScore < minQuality && !b.Override {
		return errors.Errorf("boundary %s quality %d below floor %d", b.ID, b.QualityScore, minQuality)
	}
	if b.Provenance.ContentHash == "" {
		return errors.Errorf("boundary %s has empty provenance content hash", b.ID)
	}
	return nil
}

// SortKey is the lexicographic ordering key (layer, state_fips, id) the
// commitment engine sorts by.
func (b *Boundary) SortKey() string {
	return string(b.Layer) + "\x00" + b.StateFIPS + "\x00" + b.ID
}
