package scheduler

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	if cfg.Atlas == nil {
		cfg.Atlas = params.DefaultAtlasConfig()
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.NewRegistry()
	}
	svc := NewService(context.Background(), cfg)
	t.Cleanup(svc.Stop)
	return svc
}

func TestUnits_StatePartitioning(t *testing.T) {
	svc := testService(t, &Config{
		States: []string{"06", "56"},
		Layers: []registry.Layer{registry.LayerStateLegUpper},
	})
	units := svc.Units()
	require.Len(t, units, 2, "sldu is a per-state template: one unit per state")
	ids := []string{units[0].ID(), units[1].ID()}
	assert.Contains(t, ids, "tiger-sldu/06")
	assert.Contains(t, ids, "tiger-sldu/56")
}

func TestUnits_NationwideSource(t *testing.T) {
	svc := testService(t, &Config{
		States: []string{"06", "56"},
		Layers: []registry.Layer{registry.LayerCongressional},
	})
	units := svc.Units()
	require.Len(t, units, 1, "the national CD file is a single unit")
	assert.Equal(t, "tiger-cd", units[0].ID())
	assert.Equal(t, "", units[0].StateFIPS)
}

func TestUnits_LayerFilter(t *testing.T) {
	svc := testService(t, &Config{
		States: []string{"56"},
		Layers: []registry.Layer{registry.LayerCounty, registry.LayerAIANNH},
	})
	for _, u := range svc.Units() {
		assert.Contains(t, []registry.Layer{registry.LayerCounty, registry.LayerAIANNH}, u.Source.Layer)
	}
}

func TestUnits_SourceStateRestriction(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(&registry.SourceDescriptor{
		ID:               "chicago-council",
		Name:             "Chicago council wards",
		PortalKind:       registry.PortalSocrata,
		EndpointTemplate: "https://data.cityofchicago.org/resource/x.geojson?state={state}",
		Layer:            registry.LayerCouncilDistrict,
		Authority:        registry.AuthorityMunicipal,
		VintageYear:      2024,
		States:           []string{"17"},
	}))
	reg.Seal()

	svc := testService(t, &Config{
		Registry: reg,
		States:   []string{"17", "06"},
		Layers:   []registry.Layer{registry.LayerCouncilDistrict},
	})
	for _, u := range svc.Units() {
		if u.Source.ID == "chicago-council" {
			assert.Equal(t, "17", u.StateFIPS, "source-level state restriction wins")
		}
	}
}

func TestPartitionByState(t *testing.T) {
	svc := testService(t, &Config{})
	square := orb.Polygon{orb.Ring{{-108, 43}, {-107, 43}, {-107, 44}, {-108, 44}, {-108, 43}}}
	feats := []*extract.RawFeature{
		{Geometry: square, Props: map[string]interface{}{"STATEFP": "56"}},
		{Geometry: square, Props: map[string]interface{}{"STATEFP": "06"}},
		{Geometry: square, Props: map[string]interface{}{"STATEFP": float64(6)}},
	}

	national := &WorkUnit{Source: &registry.SourceDescriptor{Layer: registry.LayerCongressional}}
	groups := svc.partitionByState(national, feats)
	assert.Len(t, groups, 2)
	assert.Len(t, groups["06"], 2, "single-digit fips is re-padded")
	assert.Len(t, groups["56"], 1)

	scoped := &WorkUnit{Source: national.Source, StateFIPS: "56"}
	groups = svc.partitionByState(scoped, feats)
	assert.Len(t, groups, 1)
	assert.Len(t, groups["56"], 3, "state-scoped units trust their own partition")
}

func councilUnit(name, endpoint string, vintage int) *WorkUnit {
	return &WorkUnit{
		Source: &registry.SourceDescriptor{
			ID:               "council-src",
			Name:             name,
			PortalKind:       registry.PortalArcGISRest,
			EndpointTemplate: endpoint,
			Layer:            registry.LayerCouncilDistrict,
			Authority:        registry.AuthorityMunicipal,
			VintageYear:      vintage,
		},
		StateFIPS: "17",
	}
}

func councilFeatures(n int) []*extract.RawFeature {
	square := orb.Polygon{orb.Ring{{-88, 41}, {-87, 41}, {-87, 42}, {-88, 42}, {-88, 41}}}
	feats := make([]*extract.RawFeature, 0, n)
	for i := 0; i < n; i++ {
		feats = append(feats, &extract.RawFeature{
			Geometry: square,
			Props:    map[string]interface{}{"DISTRICT": i + 1},
			Prov:     &extract.ProvenanceStub{},
		})
	}
	return feats
}

func TestApplyEdgeCase_AcceptsPlausibleCouncil(t *testing.T) {
	svc := testService(t, &Config{})
	feats, dropped, warnings := svc.applyEdgeCase(
		councilUnit("City Council Districts", "https://gis.example.gov/council", 2024), councilFeatures(9))
	assert.Len(t, feats, 9)
	assert.Equal(t, 0, dropped)
	assert.Empty(t, warnings)
}

func TestApplyEdgeCase_RejectsFalsePositives(t *testing.T) {
	svc := testService(t, &Config{})

	// A parcel layer that slipped past registration.
	feats, dropped, warnings := svc.applyEdgeCase(
		councilUnit("Tax Parcel Boundaries", "https://gis.example.gov/parcels", 2024), councilFeatures(9))
	assert.Empty(t, feats)
	assert.Equal(t, 9, dropped)
	assert.NotEmpty(t, warnings)

	// Far too many features for any council.
	feats, dropped, _ = svc.applyEdgeCase(
		councilUnit("City Council Districts", "https://gis.example.gov/council", 2024), councilFeatures(250))
	assert.Empty(t, feats)
	assert.Equal(t, 250, dropped)
}

func TestApplyEdgeCase_AmbiguousHeldBack(t *testing.T) {
	svc := testService(t, &Config{})
	feats, dropped, warnings := svc.applyEdgeCase(
		councilUnit("Ward Boundaries", "https://gis.example.gov/wards", 2024), councilFeatures(10))
	assert.Empty(t, feats, "ambiguous wards wait for city context")
	assert.Equal(t, 10, dropped)
	assert.NotEmpty(t, warnings)
}

func TestApplyEdgeCase_PlaceholderCountFlagsForReview(t *testing.T) {
	svc := testService(t, &Config{})
	feats, dropped, warnings := svc.applyEdgeCase(
		councilUnit("City Council Districts", "https://gis.example.gov/council", 2024), councilFeatures(1000))
	assert.Len(t, feats, 1000, "placeholder counts are flagged, never rejected")
	assert.Equal(t, 0, dropped)
	assert.NotEmpty(t, warnings)
}

func TestApplyEdgeCase_IgnoresOtherLayers(t *testing.T) {
	svc := testService(t, &Config{})
	unit := &WorkUnit{Source: &registry.SourceDescriptor{Layer: registry.LayerCongressional}}
	feats, dropped, warnings := svc.applyEdgeCase(unit, councilFeatures(500))
	assert.Len(t, feats, 500)
	assert.Equal(t, 0, dropped)
	assert.Empty(t, warnings)
}

func TestExtractors_ExposeLayerFilter(t *testing.T) {
	cfg := params.DefaultAtlasConfig()
	d := extract.NewDownloader(cfg, t.TempDir())
	h := resilience.NewHarness(cfg)
	for _, kind := range []registry.PortalKind{
		registry.PortalArcGISRest,
		registry.PortalArcGISHub,
		registry.PortalOSMOverpass,
		registry.PortalCustomStateGIS,
	} {
		src := &registry.SourceDescriptor{
			ID:               "probe-" + string(kind),
			Name:             "probe",
			PortalKind:       kind,
			EndpointTemplate: "https://gis.example.gov/arcgis/rest/services",
			Layer:            registry.LayerCouncilDistrict,
			Authority:        registry.AuthorityMunicipal,
			VintageYear:      2024,
		}
		e, err := extract.New(src, d, h)
		require.NoError(t, err)
		_, ok := e.(extract.LayerFiltered)
		assert.True(t, ok, "%s must accept a layer filter", kind)
	}
}

func TestRunUnit_FailureDoesNotAbort(t *testing.T) {
	// A registry with one unreachable source: the run records the failure
	// and completes with zero boundaries rather than erroring out.
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(&registry.SourceDescriptor{
		ID:               "dead-portal",
		Name:             "Unreachable",
		PortalKind:       registry.PortalSocrata,
		EndpointTemplate: "http://127.0.0.1:1/resource.geojson",
		Layer:            registry.LayerCouncilDistrict,
		Authority:        registry.AuthorityMunicipal,
		VintageYear:      2024,
	}))
	reg.Seal()

	cfg := params.DefaultAtlasConfig()
	cfg.Retry.MaxAttempts = 1
	cfg.MaxParallel = 2
	svc := testService(t, &Config{
		Registry:   reg,
		Atlas:      cfg,
		Sources:    []string{"dead-portal"},
		States:     []string{"17"},
		Downloader: extract.NewDownloader(cfg, t.TempDir()),
		Harness:    resilience.NewHarness(cfg),
	})

	result, err := svc.Run()
	require.NoError(t, err)
	assert.Empty(t, result.Boundaries)
	require.NotEmpty(t, result.Failures)
	assert.Equal(t, "dead-portal", result.Failures[0].Unit.Source.ID)
}
