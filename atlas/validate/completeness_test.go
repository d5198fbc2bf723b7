package validate

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCompleteness_Wyoming(t *testing.T) {
	res := CheckCompleteness(registry.LayerCongressional, "56", []string{"5601"})
	assert.True(t, res.Known)
	assert.True(t, res.Valid)
	assert.Equal(t, 1, res.Expected)
	assert.Equal(t, 1, res.Actual)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Extra)
	assert.Equal(t, 100.0, res.Percentage)
}

func TestCheckCompleteness_CaliforniaPartial(t *testing.T) {
	// 51 of California's 52 districts.
	actual := make([]string, 0, 51)
	for d := 1; d <= 51; d++ {
		actual = append(actual, fmt.Sprintf("06%02d", d))
	}
	res := CheckCompleteness(registry.LayerCongressional, "06", actual)
	assert.True(t, res.Known)
	assert.False(t, res.Valid)
	assert.Equal(t, 52, res.Expected)
	assert.Equal(t, 51, res.Actual)
	assert.Equal(t, []string{"0652"}, res.Missing)
	assert.Empty(t, res.Extra)
	assert.InDelta(t, 51.0/52.0*100, res.Percentage, 0.01)
}

func TestCheckCompleteness_ExtraGEOID(t *testing.T) {
	res := CheckCompleteness(registry.LayerCongressional, "56", []string{"5601", "5602"})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"5602"}, res.Extra)
	assert.Empty(t, res.Missing)
	assert.Equal(t, 100.0, res.Percentage)
}

func TestCheckCompleteness_SetAlgebra(t *testing.T) {
	registry.RegisterCanonical(registry.LayerCounty, "90", []string{"90001", "90002", "90003"})
	res := CheckCompleteness(registry.LayerCounty, "90", []string{"90002", "90004"})
	assert.Equal(t, []string{"90001", "90003"}, res.Missing)
	assert.Equal(t, []string{"90004"}, res.Extra)
	assert.InDelta(t, 1.0/3.0*100, res.Percentage, 0.01)
	assert.False(t, res.Valid)
}

func TestCheckCompleteness_UnknownPair(t *testing.T) {
	res := CheckCompleteness(registry.LayerVTD, "56", []string{"56001000001"})
	assert.False(t, res.Known)
	assert.True(t, res.Valid, "unknown canonical list cannot fail the gate")
}

func squareGeom() orb.Geometry {
	return orb.Polygon{orb.Ring{{-89, 40}, {-88, 40}, {-88, 41}, {-89, 41}, {-89, 40}}}
}

func TestCheckSchoolOverlap_DualSystemPolicy(t *testing.T) {
	elsd := map[string]orb.Geometry{"1700001": squareGeom()}
	scsd := map[string]orb.Geometry{"1700002": squareGeom()}

	// Illinois runs parallel elementary and secondary districts; identical
	// geometry is legal.
	require.Empty(t, CheckSchoolOverlap("17", elsd, scsd))

	// The same overlap in Texas is an error.
	elsdTX := map[string]orb.Geometry{"4800001": squareGeom()}
	scsdTX := map[string]orb.Geometry{"4800002": squareGeom()}
	violations := CheckSchoolOverlap("48", elsdTX, scsdTX)
	require.Len(t, violations, 1)
	assert.Equal(t, "4800001", violations[0].ELSDID)
	assert.Equal(t, "4800002", violations[0].SCSDID)
	assert.True(t, violations[0].IoU >= 0.9)
}

func TestCheckSchoolOverlap_DisjointGeometries(t *testing.T) {
	elsd := map[string]orb.Geometry{"4800001": squareGeom()}
	far := orb.Polygon{orb.Ring{{-99, 30}, {-98, 30}, {-98, 31}, {-99, 31}, {-99, 30}}}
	scsd := map[string]orb.Geometry{"4800002": far}
	assert.Empty(t, CheckSchoolOverlap("48", elsd, scsd))
}
