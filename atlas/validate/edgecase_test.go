package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeCouncilCandidate_FalsePositives(t *testing.T) {
	tests := []struct {
		name   string
		c      Candidate
		class  Classification
		action Action
	}{
		{
			"parcels",
			Candidate{LayerName: "Tax Parcel Boundaries", CurrentYear: 2026, FeatureCount: 9},
			FalsePositiveProperty, ActionReject,
		},
		{
			"service-area",
			Candidate{LayerName: "Water Service Area", CurrentYear: 2026, FeatureCount: 9},
			FalsePositiveService, ActionReject,
		},
		{
			"infrastructure",
			Candidate{LayerName: "Street Lighting Districts", CurrentYear: 2026, FeatureCount: 9},
			FalsePositiveInfra, ActionReject,
		},
		{
			"census",
			Candidate{LayerName: "Census Tract Boundaries", CurrentYear: 2026, FeatureCount: 9},
			FalsePositiveCensus, ActionReject,
		},
		{
			"school",
			Candidate{LayerName: "School Board Districts", URLPath: "/gis/school", CurrentYear: 2026, FeatureCount: 9},
			FalsePositiveSchool, ActionReject,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := AnalyzeCouncilCandidate(tt.c)
			assert.Equal(t, tt.class, v.Classification)
			assert.Equal(t, tt.action, v.Action)
		})
	}
}

func TestAnalyzeCouncilCandidate_Ambiguous(t *testing.T) {
	v := AnalyzeCouncilCandidate(Candidate{LayerName: "Board of Supervisors Districts", CurrentYear: 2026, FeatureCount: 5})
	assert.Equal(t, AmbiguousBOS, v.Classification)
	assert.Equal(t, ActionNeedsCityContext, v.Action)

	v = AnalyzeCouncilCandidate(Candidate{LayerName: "Ward Boundaries", CurrentYear: 2026, FeatureCount: 10})
	assert.Equal(t, AmbiguousWard, v.Classification)
	assert.Equal(t, ActionNeedsCityContext, v.Action)

	// "Council Ward" resolves the ambiguity.
	v = AnalyzeCouncilCandidate(Candidate{LayerName: "Council Ward Boundaries", CurrentYear: 2026, FeatureCount: 10})
	assert.Equal(t, TruePositive, v.Classification)
}

func TestAnalyzeCouncilCandidate_Historical(t *testing.T) {
	v := AnalyzeCouncilCandidate(Candidate{LayerName: "Council Districts", VintageYear: 2015, CurrentYear: 2026, FeatureCount: 9})
	assert.Equal(t, HistoricalVersion, v.Classification)
	assert.Equal(t, ActionNeedsManualReview, v.Action)

	v = AnalyzeCouncilCandidate(Candidate{LayerName: "Council Districts", VintageYear: 2024, CurrentYear: 2026, FeatureCount: 9})
	assert.Equal(t, TruePositive, v.Classification)
}

func TestAnalyzeCouncilCandidate_FeatureCounts(t *testing.T) {
	// Placeholder counts mean unknown: flag for review, never reject.
	for _, count := range []int{1000, 2000} {
		v := AnalyzeCouncilCandidate(Candidate{LayerName: "Council Districts", CurrentYear: 2026, FeatureCount: count})
		assert.Equal(t, ActionNeedsManualReview, v.Action, "placeholder count %d", count)
		assert.NotEqual(t, ActionReject, v.Action)
	}

	// Counts past any real council size are the wrong granularity.
	v := AnalyzeCouncilCandidate(Candidate{LayerName: "Council Districts", CurrentYear: 2026, FeatureCount: 250})
	assert.Equal(t, AggregatedData, v.Classification)
	assert.Equal(t, ActionReject, v.Action)

	// High but plausible counts accept with a note.
	v = AnalyzeCouncilCandidate(Candidate{LayerName: "Council Districts", CurrentYear: 2026, FeatureCount: 75})
	assert.Equal(t, TruePositive, v.Classification)
	assert.Equal(t, ActionAccept, v.Action)
	assert.NotEmpty(t, v.Notes)
}
