package scorer

import (
	"errors"
	"testing"

	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delinquentProfile(days, balance float64) model.UnifiedProfile {
	return model.UnifiedProfile{
		Key:                model.BorrowerKey{Kind: model.KeySSN, Value: "123456789"},
		Provenance:         model.ProvenanceMatched,
		DaysDelinquent:     days,
		OutstandingBalance: balance,
		HasDelinquency:     true,
	}
}

func TestNew_ConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		option string
	}{
		{
			name:   "weights do not sum to one",
			mutate: func(c *Config) { c.Weights.DaysDelinquent = 0.9 },
			option: "risk.weights",
		},
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Weights.DaysDelinquent = -0.2; c.Weights.OutstandingBalance = 1.2 },
			option: "risk.weights",
		},
		{
			name:   "non-increasing delinquency knots",
			mutate: func(c *Config) { c.DelinquencyKnots = [4]float64{30, 30, 90, 120} },
			option: "risk.bands.days_delinquent",
		},
		{
			name:   "non-increasing tier boundaries",
			mutate: func(c *Config) { c.Tiers = TierBoundaries{Medium: 0.5, High: 0.5, Critical: 0.75} },
			option: "risk.tiers",
		},
		{
			name:   "tier boundary above max score",
			mutate: func(c *Config) { c.Tiers.Critical = 1.2 },
			option: "risk.tiers.critical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := New(cfg)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.option, cfgErr.Option)
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	p := delinquentProfile(95, 8000)
	first, err := s.Score(p)
	require.NoError(t, err)
	second, err := s.Score(p)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Tier, second.Tier)
	assert.Equal(t, first.Factors, second.Factors)
}

func TestScore_EndToEndExample(t *testing.T) {
	// 95 days delinquent on an $8,000 balance lands in HIGH with defaults.
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	sp, err := s.Score(delinquentProfile(95, 8000))
	require.NoError(t, err)

	assert.Equal(t, model.TierHigh, sp.Tier)
	assert.InDelta(t, 0.55, sp.Score, 0.001)
}

func TestScore_MonotoneInDelinquency(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	prev := -1.0
	for days := 0.0; days <= 400; days += 5 {
		sp, err := s.Score(delinquentProfile(days, 12000))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sp.Score, prev, "days=%v", days)
		prev = sp.Score
	}
}

func TestScore_BoundedAndSaturating(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	sp, err := s.Score(delinquentProfile(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, sp.Score)
	assert.Equal(t, model.TierLow, sp.Tier)

	sp, err = s.Score(delinquentProfile(100000, 1e9))
	require.NoError(t, err)
	assert.Equal(t, 1.0, sp.Score)
	assert.Equal(t, model.TierCritical, sp.Tier)
}

func TestTierBoundaryExactness(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		score float64
		want  model.RiskTier
	}{
		{cfg.Tiers.Medium - 0.0001, model.TierLow},
		{cfg.Tiers.Medium, model.TierMedium},
		{cfg.Tiers.High - 0.0001, model.TierMedium},
		{cfg.Tiers.High, model.TierHigh},
		{cfg.Tiers.Critical - 0.0001, model.TierHigh},
		{cfg.Tiers.Critical, model.TierCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.tierFor(tt.score), "score %v", tt.score)
	}
}

func TestScore_UnscoredIsNotZero(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	sisOnly := model.UnifiedProfile{
		Key:        model.BorrowerKey{Kind: model.KeyStudentID, Value: "stu100003"},
		Provenance: model.ProvenanceSISOnly,
		Major:      "Engineering",
	}

	_, err = s.Score(sisOnly)
	require.ErrorIs(t, err, common.ErrUnscored)
}

func TestScoreAll_PartialResults(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	profiles := []model.UnifiedProfile{
		delinquentProfile(120, 28750),
		{Key: model.BorrowerKey{Kind: model.KeyStudentID, Value: "stu1"}, Provenance: model.ProvenanceSISOnly},
		delinquentProfile(15, 9500),
	}

	scored, unscored := s.ScoreAll(profiles)
	assert.Len(t, scored, 2)
	assert.Len(t, unscored, 1)
}

func TestScore_FactorContributionsSumToScore(t *testing.T) {
	s, err := New(DefaultConfig())
	require.NoError(t, err)

	sp, err := s.Score(delinquentProfile(75, 22500))
	require.NoError(t, err)

	sum := 0.0
	for _, f := range sp.Factors {
		assert.GreaterOrEqual(t, f.SubScore, 0.0)
		assert.LessOrEqual(t, f.SubScore, 1.0)
		sum += f.Contribution
	}
	assert.InDelta(t, sp.Score, sum, 1e-12)
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		score float64
		first string
	}{
		{0.9, "Emergency Financial Counseling"},
		{0.65, "Financial Planning Session"},
		{0.45, "Financial Wellness Workshop"},
		{0.1, "Preventive Check-in"},
	}
	for _, tt := range tests {
		recs := Recommendations(tt.score)
		require.NotEmpty(t, recs, "score %v", tt.score)
		assert.Equal(t, tt.first, recs[0].Action, "score %v", tt.score)
	}
}
