package snapshot

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/commit"
	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/geoutil"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Error(err)
		}
	})
	return store
}

func testBoundary(id string, layer registry.Layer, state string, minLon, minLat float64) *normalize.Boundary {
	geom := orb.Polygon{orb.Ring{
		{minLon, minLat},
		{minLon + 1, minLat},
		{minLon + 1, minLat + 1},
		{minLon, minLat + 1},
		{minLon, minLat},
	}}
	return &normalize.Boundary{
		ID:        id,
		Name:      "Boundary " + id,
		Layer:     layer,
		StateFIPS: state,
		Geometry:  geom,
		BBox:      geoutil.BBox(geom),
		Authority: registry.AuthorityFederal,
		Provenance: normalize.Provenance{
			SourceURL:   "https://example.gov/" + id,
			ContentHash: "0x01",
			Provider:    "tiger",
		},
		ProvenanceDigest: [32]byte{0x07},
		QualityScore:     100,
	}
}

func buildFor(t *testing.T, boundaries ...*normalize.Boundary) *commit.BuildResult {
	t.Helper()
	build, err := commit.Build(boundaries, params.MerkleConfig{MinDepth: 14}, 70, nil)
	require.NoError(t, err)
	return build
}

func wisconsinCD(t *testing.T) *commit.BuildResult {
	boundaries := make([]*normalize.Boundary, 0, 8)
	for d := 1; d <= 8; d++ {
		id := "55" + string([]byte{'0' + byte(d/10), '0' + byte(d%10)})
		boundaries = append(boundaries, testBoundary(id, registry.LayerCongressional, "55", -92+float64(d), 43))
	}
	return buildFor(t, boundaries...)
}

func TestCreate_VersionMonotonicity(t *testing.T) {
	store := setupStore(t)
	meta := CreateMeta{StatesIncluded: []string{"55"}, TigerVintage: 2024, BuildDuration: time.Second}

	var versions []uint64
	for i := 0; i < 3; i++ {
		snap, err := store.Create(wisconsinCD(t), meta)
		require.NoError(t, err)
		versions = append(versions, snap.Version)
	}
	assert.Equal(t, []uint64{1, 2, 3}, versions, "versions increase strictly without gaps")
}

func TestCreate_SupersedesPrevious(t *testing.T) {
	store := setupStore(t)
	meta := CreateMeta{StatesIncluded: []string{"55"}}

	first, err := store.Create(wisconsinCD(t), meta)
	require.NoError(t, err)
	second, err := store.Create(wisconsinCD(t), meta)
	require.NoError(t, err)

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	// The superseded snapshot stays readable by version and id.
	old, err := store.ByVersion(first.Version)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, StatusSuperseded, old.Status)
	byID, err := store.ByID(first.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
}

func TestList_Pagination(t *testing.T) {
	store := setupStore(t)
	for i := 0; i < 5; i++ {
		_, err := store.Create(wisconsinCD(t), CreateMeta{})
		require.NoError(t, err)
	}
	page, err := store.List(2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].Version > page[1].Version, "sorted by version desc")
	assert.Equal(t, uint64(5), page[0].Version)
}

func TestProofs_StoredAndVerifiable(t *testing.T) {
	store := setupStore(t)
	build := wisconsinCD(t)
	snap, err := store.Create(build, CreateMeta{})
	require.NoError(t, err)

	proof, err := store.Proof(snap.ID, "5503")
	require.NoError(t, err)
	require.NotNil(t, proof)
	assert.True(t, commit.VerifyProof(proof, nil))
	assert.Equal(t, snap.MerkleRoot, proof.MerkleRoot)

	index, err := store.GeoidIndex(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, len(index))
	assert.Equal(t, proof.LeafIndex, index["5503"])
}

func TestAttachCID_Idempotent(t *testing.T) {
	store := setupStore(t)
	snap, err := store.Create(wisconsinCD(t), CreateMeta{})
	require.NoError(t, err)

	contentID, err := ComputeCID([]byte("snapshot-bytes"))
	require.NoError(t, err)
	require.NoError(t, store.AttachCID(snap.ID, contentID))
	require.NoError(t, store.AttachCID(snap.ID, contentID), "re-attaching the same CID is a no-op")

	got, err := store.ByID(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, contentID, got.CID)
	assert.Equal(t, StatusPublished, got.Status)

	other, err := ComputeCID([]byte("different"))
	require.NoError(t, err)
	assert.Error(t, store.AttachCID(snap.ID, other), "rebinding to a different CID is rejected")
	assert.Error(t, store.AttachCID("missing", contentID))
}

func TestDiff_Scenario(t *testing.T) {
	store := setupStore(t)

	// v1: Wisconsin congressional districts only.
	_, err := store.Create(wisconsinCD(t), CreateMeta{StatesIncluded: []string{"55"}})
	require.NoError(t, err)

	// v2: adds counties and Alabama.
	boundaries := []*normalize.Boundary{
		testBoundary("55025", registry.LayerCounty, "55", -89.6, 42.8),
		testBoundary("01073", registry.LayerCounty, "01", -87, 33),
	}
	for d := 1; d <= 8; d++ {
		id := "55" + string([]byte{'0' + byte(d/10), '0' + byte(d%10)})
		boundaries = append(boundaries, testBoundary(id, registry.LayerCongressional, "55", -92+float64(d), 43))
	}
	_, err = store.Create(buildFor(t, boundaries...), CreateMeta{StatesIncluded: []string{"55", "01"}})
	require.NoError(t, err)

	diff, err := store.Diff(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []registry.Layer{registry.LayerCounty}, diff.LayersAdded)
	assert.Empty(t, diff.LayersRemoved)
	assert.Equal(t, []string{"01"}, diff.StatesAdded)
	assert.Empty(t, diff.StatesRemoved)
	assert.True(t, diff.MerkleRootChanged)
	assert.Equal(t, 2, diff.TotalBoundaryDelta, "delta equals the added county count")
}

func TestDiff_Symmetry(t *testing.T) {
	store := setupStore(t)
	_, err := store.Create(wisconsinCD(t), CreateMeta{StatesIncluded: []string{"55"}})
	require.NoError(t, err)
	_, err = store.Create(buildFor(t,
		testBoundary("01073", registry.LayerCounty, "01", -87, 33),
	), CreateMeta{StatesIncluded: []string{"01"}})
	require.NoError(t, err)

	forward, err := store.Diff(1, 2)
	require.NoError(t, err)
	backward, err := store.Diff(2, 1)
	require.NoError(t, err)

	assert.Equal(t, forward.LayersAdded, backward.LayersRemoved)
	assert.Equal(t, forward.LayersRemoved, backward.LayersAdded)
	assert.Equal(t, forward.StatesAdded, backward.StatesRemoved)
	assert.Equal(t, forward.StatesRemoved, backward.StatesAdded)
	assert.Equal(t, forward.TotalBoundaryDelta, -backward.TotalBoundaryDelta)
}

func TestDiff_MissingVersion(t *testing.T) {
	store := setupStore(t)
	_, err := store.Create(wisconsinCD(t), CreateMeta{})
	require.NoError(t, err)

	_, err = store.Diff(1, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionNotFound))
}

func TestExport_ReproducibleDirHash(t *testing.T) {
	store := setupStore(t)
	snap, err := store.Create(wisconsinCD(t), CreateMeta{})
	require.NoError(t, err)

	dir1 := t.TempDir()
	path1, err := store.Export(dir1, snap)
	require.NoError(t, err)
	dir2 := t.TempDir()
	path2, err := store.Export(dir2, snap)
	require.NoError(t, err)

	h1, err := DirHash(path1)
	require.NoError(t, err)
	h2, err := DirHash(path2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "export content hash is reproducible")
}
