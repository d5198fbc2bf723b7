package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGEOIDPatterns(t *testing.T) {
	tests := []struct {
		layer Layer
		id    string
		valid bool
	}{
		{LayerCongressional, "0612", true},
		{LayerCongressional, "5601", true},
		{LayerCongressional, "561", false},
		{LayerCongressional, "56011", false},
		{LayerStateLegUpper, "06001", true},
		{LayerCounty, "06037", true},
		{LayerCounty, "0603", false},
		{LayerSchoolUnified, "0600001", true},
		{LayerPlace, "5363000", true},
		{LayerVTD, "06001000001", true},
		{LayerVTD, "0600100001", false},
		{LayerCouncilDistrict, "5363000-7", true},
		{LayerCouncilDistrict, "5363000-07", true},
		{LayerCouncilDistrict, "5363000", false},
		{LayerAIANNH, "0010", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidGEOID(tt.layer, tt.id), "%s/%s", tt.layer, tt.id)
	}
}

func TestCongressionalApportionment(t *testing.T) {
	// The house holds 435 voting seats.
	assert.Equal(t, 435, TotalCongressionalDistricts())

	wy, ok := CanonicalGEOIDs(LayerCongressional, "56")
	require.True(t, ok)
	assert.Equal(t, []string{"5601"}, wy)

	ca, ok := CanonicalGEOIDs(LayerCongressional, "06")
	require.True(t, ok)
	assert.Equal(t, 52, len(ca))
	assert.Equal(t, "0601", ca[0])
	assert.Equal(t, "0652", ca[51])
}

func TestCanonicalRegistration(t *testing.T) {
	_, ok := CanonicalGEOIDs(LayerCounty, "56")
	assert.False(t, ok, "county lists load from data files")

	RegisterCanonical(LayerCounty, "56", []string{"56037", "56021"})
	ids, ok := CanonicalGEOIDs(LayerCounty, "56")
	require.True(t, ok)
	assert.Equal(t, []string{"56021", "56037"}, ids, "canonical lists come back sorted")
}

func TestDualSystemStates(t *testing.T) {
	for _, fips := range []string{"09", "17", "23", "25", "30", "33", "34", "44", "50"} {
		assert.True(t, IsDualSystemState(fips), "fips %s", fips)
	}
	assert.False(t, IsDualSystemState("48"), "Texas is not a dual-system state")
	assert.False(t, IsDualSystemState("06"))
}

func TestStateLookups(t *testing.T) {
	wy, ok := StateByFIPS("56")
	require.True(t, ok)
	assert.Equal(t, "WY", wy.USPS)
	assert.Equal(t, 1, wy.CongressionalDistricts)

	fips, ok := FIPSByUSPS("CA")
	require.True(t, ok)
	assert.Equal(t, "06", fips)

	assert.True(t, IsTerritory("72"))
	assert.False(t, IsTerritory("06"))
	assert.False(t, KnownStateFIPS("99"))
}

func TestRegistry_RegisterAndSeal(t *testing.T) {
	r := NewRegistry()
	assert.True(t, len(r.Sources()) > 0, "built-ins are preloaded")

	src := &SourceDescriptor{
		ID:               "test-portal",
		Name:             "Test",
		PortalKind:       PortalSocrata,
		EndpointTemplate: "https://data.example.gov/resource/abcd.geojson",
		Layer:            LayerCouncilDistrict,
		Authority:        AuthorityMunicipal,
		VintageYear:      2024,
	}
	require.NoError(t, r.Register(src))
	assert.Error(t, r.Register(src), "duplicate id rejected")

	r.Seal()
	src2 := *src
	src2.ID = "after-seal"
	assert.Error(t, r.Register(&src2), "sealed registry rejects registration")

	got, ok := r.Source("test-portal")
	require.True(t, ok)
	assert.Equal(t, PortalSocrata, got.PortalKind)
}

func TestRegistry_SourcesForLayer(t *testing.T) {
	r := NewRegistry()
	cd := r.SourcesForLayer(LayerCongressional)
	require.True(t, len(cd) > 0)
	assert.Equal(t, AuthorityFederal, cd[0].Authority, "most authoritative source leads")
}

func TestSourceDescriptor_Validate(t *testing.T) {
	bad := &SourceDescriptor{ID: "x", EndpointTemplate: "http://x", PortalKind: "gopher", Layer: LayerCounty, Authority: AuthorityState}
	assert.Error(t, bad.Validate())

	bad.PortalKind = PortalCKAN
	bad.Layer = "sewer"
	assert.Error(t, bad.Validate())

	bad.Layer = LayerCounty
	bad.Authority = 9
	assert.Error(t, bad.Validate())

	bad.Authority = AuthorityState
	assert.NoError(t, bad.Validate())
}
