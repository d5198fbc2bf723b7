package validate

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/shadowatlas/shadow-atlas/atlas/extract"
	"github.com/stretchr/testify/assert"
)

func feat(g orb.Geometry) *extract.RawFeature {
	return &extract.RawFeature{Geometry: g, Props: map[string]interface{}{}, Prov: &extract.ProvenanceStub{}}
}

func validSquare() orb.Geometry {
	return orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
}

func TestCheckTopology(t *testing.T) {
	tests := []struct {
		name    string
		geom    orb.Geometry
		invalid bool
	}{
		{"valid-square", validSquare(), false},
		{"empty", orb.Polygon{}, true},
		{"nil", nil, true},
		{"unclosed", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}, true},
		{"too-few-vertices", orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {0, 0}}}, true},
		{"self-intersecting", orb.Polygon{orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}}, true},
		{"nan", orb.Polygon{orb.Ring{{0, 0}, {math.NaN(), 0}, {1, 1}, {0, 1}, {0, 0}}}, true},
		{"multipolygon-valid", orb.MultiPolygon{
			{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
			{orb.Ring{{2, 2}, {3, 2}, {3, 3}, {2, 3}, {2, 2}}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := CheckTopology([]*extract.RawFeature{feat(tt.geom)}, 0)
			assert.Equal(t, tt.invalid, report.Invalid == 1, "issues: %v", report.Issues)
			assert.Equal(t, !tt.invalid, report.Valid)
		})
	}
}

func TestCheckTopology_InvalidRatioTolerance(t *testing.T) {
	feats := []*extract.RawFeature{
		feat(validSquare()),
		feat(validSquare()),
		feat(validSquare()),
		feat(orb.Polygon{}),
	}
	strict := CheckTopology(feats, 0)
	assert.False(t, strict.Valid)

	tolerant := CheckTopology(feats, 0.3)
	assert.True(t, tolerant.Valid, "25%% invalid is inside a 30%% tolerance")
	assert.Equal(t, 1, tolerant.Invalid)
	assert.True(t, tolerant.InvalidIndex[3])
}

func TestCheckCoordinates(t *testing.T) {
	inRange := feat(validSquare())
	outOfRange := feat(orb.Polygon{orb.Ring{{200, 0}, {201, 0}, {201, 1}, {200, 1}, {200, 0}}})

	report := CheckCoordinates([]*extract.RawFeature{inRange}, "")
	assert.True(t, report.Valid)

	report = CheckCoordinates([]*extract.RawFeature{inRange, outOfRange}, "")
	assert.False(t, report.Valid)
	assert.Equal(t, 1, report.OutOfRange)
}

func TestCheckCoordinates_TerritoryExemption(t *testing.T) {
	// Guam sits far outside the continental hull.
	guam := feat(orb.Polygon{orb.Ring{{144.7, 13.3}, {144.9, 13.3}, {144.9, 13.5}, {144.7, 13.5}, {144.7, 13.3}}})

	mainland := CheckCoordinates([]*extract.RawFeature{guam}, "06")
	assert.True(t, mainland.Valid)
	assert.Equal(t, 1, mainland.Suspicious, "far-flung geometry is suspicious for a mainland state")

	territory := CheckCoordinates([]*extract.RawFeature{guam}, "66")
	assert.Equal(t, 0, territory.Suspicious, "territories are exempt from the continental flag")
}

func TestCheckGeographic(t *testing.T) {
	wyoming := feat(orb.Polygon{orb.Ring{{-108, 43}, {-107, 43}, {-107, 44}, {-108, 44}, {-108, 43}}})
	florida := feat(orb.Polygon{orb.Ring{{-82, 28}, {-81, 28}, {-81, 29}, {-82, 29}, {-82, 28}}})

	report := CheckGeographic([]*extract.RawFeature{wyoming}, "56")
	assert.True(t, report.Valid)

	report = CheckGeographic([]*extract.RawFeature{wyoming, florida}, "56")
	assert.False(t, report.Valid)
	assert.Equal(t, 1, report.WrongState)

	report = CheckGeographic([]*extract.RawFeature{wyoming}, "99")
	assert.False(t, report.Valid, "unknown state fips cannot validate")
}

func TestQualityScore(t *testing.T) {
	assert.Equal(t, 100, QualityScore(100, true, true))
	assert.Equal(t, 40, QualityScore(100, false, false))
	assert.Equal(t, 60, QualityScore(0, true, true))
	assert.Equal(t, 0, QualityScore(0, false, false))
	assert.Equal(t, 80, QualityScore(50, true, true))
}