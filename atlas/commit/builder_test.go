package commit

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare(minLon, minLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat},
		{minLon + 1, minLat},
		{minLon + 1, minLat + 1},
		{minLon, minLat + 1},
		{minLon, minLat},
	}}
}

func testBoundary(id string, layer registry.Layer, state string, geom orb.Geometry) *normalize.Boundary {
	b := &normalize.Boundary{
		ID:        id,
		Name:      "Test Boundary " + id,
		Layer:     layer,
		StateFIPS: state,
		Geometry:  geom,
		BBox:      geoutil.BBox(geom),
		Authority: registry.AuthorityFederal,
		Provenance: normalize.Provenance{
			SourceURL:   "https://example.gov/" + id,
			ContentHash: "0xdeadbeef",
			Provider:    "tiger",
		},
		QualityScore: 100,
	}
	b.ProvenanceDigest = [32]byte{0x01, 0x02}
	return b
}

func testConfig() params.MerkleConfig {
	return params.MerkleConfig{MinDepth: 14}
}

// flipHexByte changes the last byte of a 0x-hex string so it always differs.
func flipHexByte(hex string) string {
	last := hex[len(hex)-1]
	if last == 'f' {
		return hex[:len(hex)-1] + "0"
	}
	return hex[:len(hex)-1] + "f"
}

func TestBuild_RootDeterminism(t *testing.T) {
	boundaries := []*normalize.Boundary{
		testBoundary("5601", registry.LayerCongressional, "56", unitSquare(-110, 42)),
		testBoundary("56037", registry.LayerCounty, "56", unitSquare(-109, 41.5)),
	}
	b1, err := Build(boundaries, testConfig(), 70, nil)
	require.NoError(t, err)
	b2, err := Build(boundaries, testConfig(), 70, nil)
	require.NoError(t, err)
	assert.Equal(t, b1.Root, b2.Root)
	assert.Equal(t, 14, b1.Depth)
}

func TestBuild_SortOrderIndependence(t *testing.T) {
	a := testBoundary("5601", registry.LayerCongressional, "56", unitSquare(-110, 42))
	b := testBoundary("56037", registry.LayerCounty, "56", unitSquare(-109, 41.5))
	b1, err := Build([]*normalize.Boundary{a, b}, testConfig(), 70, nil)
	require.NoError(t, err)
	b2, err := Build([]*normalize.Boundary{b, a}, testConfig(), 70, nil)
	require.NoError(t, err)
	assert.Equal(t, b1.Root, b2.Root, "input order must not affect the root")
}

func TestBuild_ProvenanceCommitted(t *testing.T) {
	a := testBoundary("5601", registry.LayerCongressional, "56", unitSquare(-110, 42))
	b1, err := Build([]*normalize.Boundary{a}, testConfig(), 70, nil)
	require.NoError(t, err)

	changed := *a
	changed.ProvenanceDigest = [32]byte{0x09}
	b2, err := Build([]*normalize.Boundary{&changed}, testConfig(), 70, nil)
	require.NoError(t, err)
	assert.NotEqual(t, b1.Root, b2.Root, "provenance digest change must change the root")
}

func TestLeafHash_LayerAndAuthorityCommitted(t *testing.T) {
	a := testBoundary("0600001", registry.LayerSchoolElementary, "06", unitSquare(-120, 36))
	b := testBoundary("0600001", registry.LayerSchoolSecondary, "06", unitSquare(-120, 36))
	la, err := LeafHash(a, nil)
	require.NoError(t, err)
	lb, err := LeafHash(b, nil)
	require.NoError(t, err)
	assert.NotEqual(t, la, lb, "layer tag must be committed")

	c := testBoundary("0600001", registry.LayerSchoolElementary, "06", unitSquare(-120, 36))
	c.Authority = registry.AuthorityMunicipal
	lc, err := LeafHash(c, nil)
	require.NoError(t, err)
	assert.NotEqual(t, la, lc, "authority must be committed")
}

func TestBuild_RejectsInvalidBoundary(t *testing.T) {
	bad := testBoundary("56", registry.LayerCongressional, "56", unitSquare(-110, 42))
	_, err := Build([]*normalize.Boundary{bad}, testConfig(), 70, nil)
	assert.Error(t, err, "malformed GEOID must not be committed")

	lowQuality := testBoundary("5601", registry.LayerCongressional, "56", unitSquare(-110, 42))
	lowQuality.QualityScore = 50
	_, err = Build([]*normalize.Boundary{lowQuality}, testConfig(), 70, nil)
	assert.Error(t, err, "quality below floor must not be committed")

	lowQuality.Override = true
	_, err = Build([]*normalize.Boundary{lowQuality}, testConfig(), 70, nil)
	assert.NoError(t, err, "override bit admits a low-quality boundary")
}

func TestBuild_DuplicateID(t *testing.T) {
	a := testBoundary("5601", registry.LayerCongressional, "56", unitSquare(-110, 42))
	b := testBoundary("5601", registry.LayerCongressional, "56", unitSquare(-110, 42))
	_, err := Build([]*normalize.Boundary{a, b}, testConfig(), 70, nil)
	assert.Error(t, err)
}

func TestProve_Soundness(t *testing.T) {
	boundaries := []*normalize.Boundary{
		testBoundary("5601", registry.LayerCongressional, "56", unitSquare(-110, 42)),
		testBoundary("56037", registry.LayerCounty, "56", unitSquare(-109, 41.5)),
		testBoundary("56021", registry.LayerCounty, "56", unitSquare(-106, 41.5)),
	}
	build, err := Build(boundaries, testConfig(), 70, nil)
	require.NoError(t, err)

	for _, b := range boundaries {
		proof, err := build.Prove(b.ID)
		require.NoError(t, err)
		assert.Equal(t, 14, len(proof.Siblings))
		assert.Equal(t, 14, len(proof.PathIndices))
		assert.True(t, VerifyProof(proof, nil), "proof for %s must verify", b.ID)

		tampered := *proof
		tampered.Siblings = append([]string{}, proof.Siblings...)
		tampered.Siblings[0] = flipHexByte(proof.Siblings[0])
		assert.False(t, VerifyProof(&tampered, nil), "tampered sibling must fail")

		badRoot := *proof
		badRoot.MerkleRoot = flipHexByte(proof.MerkleRoot)
		assert.False(t, VerifyProof(&badRoot, nil), "tampered root must fail")
	}

	_, err = build.Prove("0000")
	assert.Error(t, err)
}

// Wyoming at-large congressional district end to end: one valid boundary,
// deterministic root, verifying proof.
func TestWyomingCongressionalDistrict(t *testing.T) {
	wy := testBoundary("5601", registry.LayerCongressional, "56", unitSquare(-108, 43))
	wy.Name = "Congressional District (at Large)"

	b1, err := Build([]*normalize.Boundary{wy}, testConfig(), 70, nil)
	require.NoError(t, err)
	b2, err := Build([]*normalize.Boundary{wy}, testConfig(), 70, nil)
	require.NoError(t, err)
	assert.Equal(t, b1.Root, b2.Root)

	proof, err := b1.Prove("5601")
	require.NoError(t, err)
	assert.True(t, VerifyProof(proof, nil))
	assert.Equal(t, "cd", proof.BoundaryType)
	assert.Equal(t, 0, proof.LeafIndex)
}
