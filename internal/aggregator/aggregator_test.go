package aggregator

import (
	"testing"

	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredIn(major string, score float64, tier model.RiskTier, balance float64) model.ScoredProfile {
	return model.ScoredProfile{
		Profile: model.UnifiedProfile{
			Major:              major,
			OutstandingBalance: balance,
			HasDelinquency:     true,
		},
		Score: score,
		Tier:  tier,
	}
}

func TestAggregate_CountConsistency(t *testing.T) {
	scored := []model.ScoredProfile{
		scoredIn("Nursing", 0.6, model.TierHigh, 8000),
		scoredIn("Nursing", 0.3, model.TierMedium, 4000),
		scoredIn("Biology", 0.1, model.TierLow, 2000),
		scoredIn("", 0.8, model.TierCritical, 50000),
	}

	report := Aggregate(scored, DefaultConfig())

	sum := 0
	for _, p := range report.Programs {
		sum += p.Count
	}
	assert.Equal(t, len(scored), sum)
	assert.Equal(t, 1, report.UnknownCount)
	assert.Equal(t, len(scored)-report.UnknownCount, sum-report.UnknownCount)
	assert.Equal(t, len(scored), report.TotalScored)
}

func TestAggregate_UnknownBucketNotMerged(t *testing.T) {
	scored := []model.ScoredProfile{
		scoredIn("", 0.5, model.TierHigh, 1000),
		scoredIn("Nursing", 0.5, model.TierHigh, 1000),
	}

	report := Aggregate(scored, DefaultConfig())

	majors := make(map[string]bool)
	for _, p := range report.Programs {
		majors[p.Major] = true
	}
	assert.True(t, majors[model.UnknownProgram])
	assert.True(t, majors["Nursing"])
}

func TestAggregate_DeterministicRanking(t *testing.T) {
	scored := []model.ScoredProfile{
		// Engineering: mean 0.5, count 2.
		scoredIn("Engineering", 0.4, model.TierMedium, 1000),
		scoredIn("Engineering", 0.6, model.TierHigh, 1000),
		// Biology: mean 0.5, count 1 -> loses the count tiebreak.
		scoredIn("Biology", 0.5, model.TierHigh, 1000),
		// Art and Music: mean 0.5, count 1 each -> name tiebreak.
		scoredIn("Music", 0.5, model.TierHigh, 1000),
		scoredIn("Art", 0.5, model.TierHigh, 1000),
		// Nursing: mean 0.9, top rank.
		scoredIn("Nursing", 0.9, model.TierCritical, 1000),
	}

	report := Aggregate(scored, DefaultConfig())

	var order []string
	for _, p := range report.Programs {
		order = append(order, p.Major)
	}
	assert.Equal(t, []string{"Nursing", "Engineering", "Art", "Biology", "Music"}, order)
	for i, p := range report.Programs {
		assert.Equal(t, i+1, p.Rank)
	}
}

func TestAggregate_LowConfidenceFlaggedNotHidden(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinCohort = 3

	scored := []model.ScoredProfile{
		scoredIn("Nursing", 0.5, model.TierHigh, 1000),
		scoredIn("Nursing", 0.5, model.TierHigh, 1000),
		scoredIn("Nursing", 0.5, model.TierHigh, 1000),
		scoredIn("Art History", 0.9, model.TierCritical, 1000),
	}

	report := Aggregate(scored, cfg)

	require.Len(t, report.Programs, 2)
	for _, p := range report.Programs {
		switch p.Major {
		case "Nursing":
			assert.False(t, p.LowConfidence)
		case "Art History":
			assert.True(t, p.LowConfidence, "sparse program must be flagged, not hidden")
		}
	}
}

func TestAggregate_SingleBorrowerProgram(t *testing.T) {
	scored := []model.ScoredProfile{scoredIn("Nursing", 0.55, model.TierHigh, 8000)}

	report := Aggregate(scored, DefaultConfig())

	require.Len(t, report.Programs, 1)
	p := report.Programs[0]
	assert.Equal(t, "Nursing", p.Major)
	assert.Equal(t, 1, p.Count)
	assert.Equal(t, 0.55, p.MeanScore)
	assert.Equal(t, 8000.0, p.TotalBalance)
	assert.Equal(t, 1, p.TierCounts[model.TierHigh])
}

func TestAggregate_TierDistribution(t *testing.T) {
	scored := []model.ScoredProfile{
		scoredIn("Nursing", 0.1, model.TierLow, 0),
		scoredIn("Nursing", 0.3, model.TierMedium, 0),
		scoredIn("Nursing", 0.6, model.TierHigh, 0),
		scoredIn("Nursing", 0.6, model.TierHigh, 0),
		scoredIn("Nursing", 0.9, model.TierCritical, 0),
	}

	report := Aggregate(scored, DefaultConfig())

	require.Len(t, report.Programs, 1)
	tc := report.Programs[0].TierCounts
	assert.Equal(t, 1, tc[model.TierLow])
	assert.Equal(t, 1, tc[model.TierMedium])
	assert.Equal(t, 2, tc[model.TierHigh])
	assert.Equal(t, 1, tc[model.TierCritical])
}

func TestProjectCDR(t *testing.T) {
	// Two HIGH (0.45 each), one MEDIUM (0.20), one LOW (0.05):
	// projected = 1.15 of 4 borrowers -> 28.75% current.
	// Preventable = 2 * 0.45 * 0.30 = 0.27 -> improved 22.0%.
	scored := []model.ScoredProfile{
		scoredIn("A", 0.6, model.TierHigh, 0),
		scoredIn("B", 0.6, model.TierHigh, 0),
		scoredIn("C", 0.3, model.TierMedium, 0),
		scoredIn("D", 0.1, model.TierLow, 0),
	}

	report := Aggregate(scored, DefaultConfig())

	assert.InDelta(t, 1.15, report.CDR.ProjectedDefaults, 1e-9)
	assert.InDelta(t, 28.75, report.CDR.CurrentPct, 1e-9)
	assert.InDelta(t, 22.0, report.CDR.ImprovedPct, 1e-9)
	assert.InDelta(t, 6.75, report.CDR.DeltaPct, 1e-9)
}

func TestAggregate_Empty(t *testing.T) {
	report := Aggregate(nil, DefaultConfig())
	assert.Empty(t, report.Programs)
	assert.Equal(t, 0, report.TotalScored)
	assert.Equal(t, 0.0, report.CDR.CurrentPct)
}
