package normalize

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/bytesutil"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
	"github.com/shadowatlas/shadow-atlas/shared/params"
)

// Normalizer builds canonical boundaries out of gate survivors. Identical
// inputs yield byte-identical outputs; nothing here reads the wall clock.
type Normalizer struct {
	cfg    *params.AtlasConfig
	hasher hashutil.Hasher

	seqMu sync.Mutex
	seq   map[string]int
}

// New returns a normalizer bound to the pipeline configuration.
func New(cfg *params.AtlasConfig, hasher hashutil.Hasher) *Normalizer {
	if hasher == nil {
		hasher = hashutil.FieldHasher{}
	}
	return &Normalizer{cfg: cfg, hasher: hasher, seq: map[string]int{}}
}

// Normalize converts one raw feature into a canonical boundary. The quality
// score comes from the gate that admitted the feature's work unit.
func (n *Normalizer) Normalize(f *extract.RawFeature, src *registry.SourceDescriptor, stateFIPS string, quality int) (*Boundary, error) {
	layer := src.Layer

	id := ExtractGEOID(layer, f)
	synthesized := false
	if id == "" {
		id = n.nextSynthesized(layer, stateFIPS)
		if id == "" {
			return nil, errors.Errorf("feature has no usable GEOID for layer %s", layer)
		}
		synthesized = true
		log.WithFields(map[string]interface{}{
			"layer": layer,
			"state": stateFIPS,
			"id":    id,
		}).Warn("Synthesized fallback GEOID")
	}

	name := f.StringProp("NAMELSAD", "NAME", "name", "NAMELSAD20")
	if name == "" {
		name = fmt.Sprintf("%s %s", layer, id)
	}

	geom := geoutil.SimplifyPreservingArea(f.Geometry, n.cfg.SimplifyAreaRatio, n.cfg.MaxRingVertices)

	b := &Boundary{
		ID:        id,
		Name:      name,
		Layer:     layer,
		StateFIPS: stateFIPS,
		Geometry:  geom,
		BBox:      geoutil.BBox(geom),
		Authority: src.Authority,
		Provenance: Provenance{
			SourceURL:      f.Prov.SourceURL,
			ContentHash:    bytesutil.ToHex(f.Prov.ContentHash[:]),
			LastModified:   f.Prov.LastModified,
			Provider:       f.Prov.Provider,
			Vintage:        src.VintageYear,
			AuthorityLabel: src.Authority.String(),
			Licence:        src.Licence,
		},
		QualityScore: quality,
		Synthesized:  synthesized,
	}
	b.ProvenanceDigest = n.provenanceDigest(&b.Provenance)
	return b, nil
}

// provenanceDigest content-addresses the source binding with the field
// hasher, so the digest can travel into the leaf hash unchanged.
func (n *Normalizer) provenanceDigest(p *Provenance) [32]byte {
	material := []byte(p.SourceURL)
	material = append(material, 0)
	material = append(material, []byte(p.ContentHash)...)
	material = append(material, 0)
	material = append(material, []byte(p.LastModified)...)
	material = append(material, 0)
	material = append(material, []byte(p.Provider)...)
	return n.hasher.ToElement(material)
}

func (n *Normalizer) nextSynthesized(layer registry.Layer, stateFIPS string) string {
	n.seqMu.Lock()
	defer n.seqMu.Unlock()
	key := string(layer) + "/" + stateFIPS
	n.seq[key]++
	return SynthesizeGEOID(layer, stateFIPS, n.seq[key])
}
