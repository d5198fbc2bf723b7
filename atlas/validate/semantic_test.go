package validate

import (
	"testing"

	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/stretchr/testify/assert"
)

func TestScoreLayer_NegativeKeywordsReject(t *testing.T) {
	tests := []string{
		"Voting Precincts 2022",
		"Tree Canopy Assessment",
		"Zoning Overlay Districts",
		"Tax Parcels",
		"Polling Locations",
		"School District Boundaries",
		"Fire District Response Zones",
		"Congressional Districts 119th",
	}
	for _, title := range tests {
		s := ScoreLayer(registry.LayerCouncilDistrict, title, "")
		assert.Equal(t, 0, s.Score, "%q must score zero", title)
		assert.False(t, s.Accepted)
		assert.NotEmpty(t, s.RejectedBy)
	}
}

func TestScoreLayer_RequiredPositives(t *testing.T) {
	tests := []struct {
		title string
		clean bool
	}{
		{"City Council Districts", true},
		{"Council District Boundaries", true},
		{"Aldermanic Wards", true},
		{"Supervisor Districts", true},
	}
	for _, tt := range tests {
		s := ScoreLayer(registry.LayerCouncilDistrict, tt.title, "")
		assert.True(t, s.Accepted, "%q must be accepted", tt.title)
		if tt.clean {
			assert.True(t, s.Score >= SemanticCleanAt, "%q should score clean, got %d", tt.title, s.Score)
			assert.False(t, s.Warning)
		}
	}
}

func TestScoreLayer_WeakPositivesAloneRejected(t *testing.T) {
	// "district" and "electoral" without any required positive cannot clear
	// the bar no matter how many weak words stack up.
	s := ScoreLayer(registry.LayerCouncilDistrict, "Electoral District Representative Boundary Map", "")
	assert.False(t, s.Accepted)
	assert.True(t, s.Score < SemanticRejectBelow)
}

func TestScoreLayer_DescriptionContributes(t *testing.T) {
	s := ScoreLayer(registry.LayerCouncilDistrict, "Districts", "Current city council district boundaries")
	assert.True(t, s.Accepted)
}

func TestScoreLayer_NonCouncilLayersScoreClean(t *testing.T) {
	s := ScoreLayer(registry.LayerCongressional, "tl_2024_us_cd119", "")
	assert.Equal(t, 100, s.Score)
	assert.True(t, s.Accepted)
}
