package crossval

import (
	"testing"

	"github.com/shadowatlas/shadow-atlas/atlas/normalize"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tieredBoundary(id string, tier registry.AuthorityTier) *normalize.Boundary {
	b := boundary(id, square(-108, 43, 1, 1))
	b.Authority = tier
	return b
}

func TestReconcile_HighestAuthorityWins(t *testing.T) {
	tiger := tieredBoundary("5601", registry.AuthorityFederal)
	portal := tieredBoundary("5601", registry.AuthorityState)

	out, reports := Reconcile([]*normalize.Boundary{portal, tiger}, params.DefaultAtlasConfig().Cross)
	require.Len(t, out, 1)
	assert.Equal(t, registry.AuthorityFederal, out[0].Authority)
	require.Len(t, reports, 1, "the dual-covered pair is cross validated")
	assert.Len(t, reports[0].Matches, 1)
}

func TestReconcile_SingleSourcePassesThrough(t *testing.T) {
	a := tieredBoundary("5601", registry.AuthorityFederal)
	b := tieredBoundary("5602", registry.AuthorityFederal)

	out, reports := Reconcile([]*normalize.Boundary{b, a}, params.DefaultAtlasConfig().Cross)
	require.Len(t, out, 2)
	assert.Empty(t, reports, "a single source has nothing to compare against")
	assert.Equal(t, "5601", out[0].ID, "output order is deterministic")
}

func TestReconcile_SecondaryFillsGaps(t *testing.T) {
	// The portal covers a district TIGER is missing; the merged set keeps
	// the portal's extra alongside TIGER's versions.
	tigerA := tieredBoundary("5601", registry.AuthorityFederal)
	portalA := tieredBoundary("5601", registry.AuthorityState)
	portalB := tieredBoundary("5602", registry.AuthorityState)

	out, _ := Reconcile([]*normalize.Boundary{portalA, portalB, tigerA}, params.DefaultAtlasConfig().Cross)
	require.Len(t, out, 2)
	byID := map[string]registry.AuthorityTier{}
	for _, b := range out {
		byID[b.ID] = b.Authority
	}
	assert.Equal(t, registry.AuthorityFederal, byID["5601"])
	assert.Equal(t, registry.AuthorityState, byID["5602"])
}

func TestReconcile_SeparateGroupsDoNotInteract(t *testing.T) {
	cd := tieredBoundary("5601", registry.AuthorityFederal)
	county := tieredBoundary("56037", registry.AuthorityFederal)
	county.Layer = registry.LayerCounty

	out, reports := Reconcile([]*normalize.Boundary{county, cd}, params.DefaultAtlasConfig().Cross)
	assert.Len(t, out, 2)
	assert.Empty(t, reports)
}
