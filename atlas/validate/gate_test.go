package validate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cdFeature(geoid string, minLon, minLat float64) *extract.RawFeature {
	return &extract.RawFeature{
		Geometry: orb.Polygon{orb.Ring{
			{minLon, minLat},
			{minLon + 1, minLat},
			{minLon + 1, minLat + 1},
			{minLon, minLat + 1},
			{minLon, minLat},
		}},
		Props: map[string]interface{}{"GEOID": geoid},
		Prov:  &extract.ProvenanceStub{SourceURL: "https://example.gov", Provider: "tiger"},
	}
}

func newTestGate(cfg *params.AtlasConfig) *Gate {
	return NewGate(cfg, func(layer registry.Layer, f *extract.RawFeature) string {
		return normalize.ExtractGEOID(layer, f)
	})
}

func TestGate_WyomingCleanRun(t *testing.T) {
	cfg := params.DefaultAtlasConfig()
	gate := newTestGate(cfg)

	res, err := gate.Run(registry.LayerCongressional, "56", []*extract.RawFeature{
		cdFeature("5601", -108, 43),
	})
	require.NoError(t, err)
	assert.True(t, res.Completeness.Valid)
	assert.Equal(t, 100, res.QualityScore)
	assert.Equal(t, 1, len(res.Features))
	assert.Equal(t, 0, res.Dropped)
}

func TestGate_CompletenessHalt(t *testing.T) {
	cfg := params.DefaultAtlasConfig()
	gate := newTestGate(cfg)

	// California with one district missing.
	feats := make([]*extract.RawFeature, 0, 51)
	for d := 1; d <= 51; d++ {
		feats = append(feats, cdFeature(cdID(d), -122+float64(d%8), 33+float64(d/8)))
	}
	_, err := gate.Run(registry.LayerCongressional, "06", feats)
	require.Error(t, err)
	halt, ok := AsHalt(err)
	require.True(t, ok)
	assert.Equal(t, "completeness", halt.Stage)
	assert.Equal(t, registry.LayerCongressional, halt.Layer)
	assert.Equal(t, "06", halt.StateFIPS)
}

func TestGate_CompletenessHaltDisabled(t *testing.T) {
	cfg := params.DefaultAtlasConfig()
	cfg.Halt.OnCompleteness = false
	gate := newTestGate(cfg)

	res, err := gate.Run(registry.LayerCongressional, "56", []*extract.RawFeature{
		cdFeature("5601", -108, 43),
		cdFeature("5602", -106, 43), // extra district: completeness fails
	})
	require.NoError(t, err)
	assert.False(t, res.Completeness.Valid)
	assert.NotEmpty(t, res.Warnings)
}

func TestGate_TopologyHalt(t *testing.T) {
	cfg := params.DefaultAtlasConfig()
	gate := newTestGate(cfg)

	open := &extract.RawFeature{
		Geometry: orb.Polygon{orb.Ring{{-108, 43}, {-107, 43}, {-107, 44}}},
		Props:    map[string]interface{}{"GEOID": "5601"},
		Prov:     &extract.ProvenanceStub{},
	}
	_, err := gate.Run(registry.LayerCongressional, "56", []*extract.RawFeature{open})
	require.Error(t, err)
	halt, ok := AsHalt(err)
	require.True(t, ok)
	assert.Equal(t, "topology", halt.Stage)
}

func TestGate_CoordinateHalt(t *testing.T) {
	cfg := params.DefaultAtlasConfig()
	gate := newTestGate(cfg)

	// Longitude past 180: finite and topologically sound, so only the
	// coordinate gate can catch it. No state partition, so the geographic
	// gate stays quiet.
	bad := &extract.RawFeature{
		Geometry: orb.Polygon{orb.Ring{{200, 43}, {201, 43}, {201, 44}, {200, 44}, {200, 43}}},
		Props:    map[string]interface{}{"GEOID": "5601"},
		Prov:     &extract.ProvenanceStub{},
	}
	_, err := gate.Run(registry.LayerCongressional, "", []*extract.RawFeature{bad})
	require.Error(t, err)
	halt, ok := AsHalt(err)
	require.True(t, ok)
	assert.Equal(t, "coordinate", halt.Stage)
}

func TestGate_WrongStateDropped(t *testing.T) {
	cfg := params.DefaultAtlasConfig()
	cfg.Halt.OnCompleteness = false
	gate := newTestGate(cfg)

	res, err := gate.Run(registry.LayerCongressional, "56", []*extract.RawFeature{
		cdFeature("5601", -108, 43),
		cdFeature("1201", -82, 28), // Florida geometry in a Wyoming unit
	})
	require.NoError(t, err)
	assert.Equal(t, 1, len(res.Features))
	assert.Equal(t, 1, res.Dropped)
	assert.NotEmpty(t, res.Warnings)
}

func TestGate_LayerFilter(t *testing.T) {
	gate := newTestGate(params.DefaultAtlasConfig())

	council := gate.LayerFilter(registry.LayerCouncilDistrict)
	assert.False(t, council("Voting Precincts 2022", ""), "negative keyword rejects pre-download")
	assert.False(t, council("Electoral Boundary Map", ""), "weak matches alone cannot clear the bar")
	assert.True(t, council("City Council Districts", ""))
	assert.True(t, council("Districts", "Current city council district boundaries"))

	cd := gate.LayerFilter(registry.LayerCongressional)
	assert.True(t, cd("tl_2024_us_cd119", ""), "authoritative layers score clean")
}

func cdID(d int) string {
	return string([]byte{'0', '6', '0' + byte(d/10), '0' + byte(d%10)})
}
