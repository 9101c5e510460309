// Package scorer computes a deterministic risk score and tier per unified
// borrower profile. The score is a pure function of the profile's
// delinquency fields and the configuration; the same inputs always produce
// a bit-identical result.
package scorer

import (
	"fmt"

	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/charted-solutions/loanrisk/internal/model"
)

// Factor names recorded on scored profiles.
const (
	FactorDaysDelinquent     = "days_delinquent"
	FactorOutstandingBalance = "outstanding_balance"
)

// Scorer scores unified profiles against a validated configuration.
type Scorer struct {
	cfg Config
}

// New validates the configuration and returns a scorer. A malformed
// configuration fails with a *ConfigError.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Score computes the scored profile for one borrower.
//
// A profile without delinquency data (SIS-only provenance) cannot be
// scored and returns common.ErrUnscored. That outcome is distinct from a
// zero score: absence of data and a measured zero must never be conflated
// downstream.
func (s *Scorer) Score(p model.UnifiedProfile) (model.ScoredProfile, error) {
	if !p.HasDelinquency {
		return model.ScoredProfile{}, fmt.Errorf("profile %s: %w", p.Key, common.ErrUnscored)
	}

	delinquency := rampScore(p.DaysDelinquent, s.cfg.DelinquencyKnots, delinquencyKnotScores, 1.5)
	balance := rampScore(p.OutstandingBalance, s.cfg.BalanceBands, balanceKnotScores, 2.0)

	factors := []model.FactorContribution{
		{
			Factor:       FactorDaysDelinquent,
			SubScore:     delinquency,
			Weight:       s.cfg.Weights.DaysDelinquent,
			Contribution: delinquency * s.cfg.Weights.DaysDelinquent,
		},
		{
			Factor:       FactorOutstandingBalance,
			SubScore:     balance,
			Weight:       s.cfg.Weights.OutstandingBalance,
			Contribution: balance * s.cfg.Weights.OutstandingBalance,
		},
	}

	score := 0.0
	for _, f := range factors {
		score += f.Contribution
	}

	return model.ScoredProfile{
		Profile: p,
		Score:   score,
		Tier:    s.cfg.tierFor(score),
		Factors: factors,
	}, nil
}

// ScoreAll scores every scorable profile, returning the unscored profiles
// separately. Missing delinquency data is a flagged partial result, never a
// batch failure.
func (s *Scorer) ScoreAll(profiles []model.UnifiedProfile) (scored []model.ScoredProfile, unscored []model.UnifiedProfile) {
	for _, p := range profiles {
		sp, err := s.Score(p)
		if err != nil {
			unscored = append(unscored, p)
			continue
		}
		scored = append(scored, sp)
	}
	return scored, unscored
}

// rampScore maps a raw factor value onto [0,1] with a monotone piecewise
// linear ramp through (0,0), the four configured knots, and a terminal
// point at topFactor times the last knot where the sub-score saturates
// at 1.0.
func rampScore(x float64, knots [4]float64, scores [4]float64, topFactor float64) float64 {
	if x <= 0 {
		return 0
	}

	xs := []float64{0, knots[0], knots[1], knots[2], knots[3], knots[3] * topFactor}
	ys := []float64{0, scores[0], scores[1], scores[2], scores[3], 1.0}

	if x >= xs[len(xs)-1] {
		return 1.0
	}
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			span := xs[i] - xs[i-1]
			t := (x - xs[i-1]) / span
			return ys[i-1] + t*(ys[i]-ys[i-1])
		}
	}
	return 1.0
}

// Recommendations returns the intervention actions suggested for a risk
// score, most urgent first.
func Recommendations(score float64) []model.Recommendation {
	switch {
	case score >= 0.8:
		return []model.Recommendation{
			{Action: "Emergency Financial Counseling", Timeline: "Within 24 hours"},
			{Action: "Loan Rehabilitation Discussion", Timeline: "Within 48 hours"},
		}
	case score >= 0.6:
		return []model.Recommendation{
			{Action: "Financial Planning Session", Timeline: "Within 1 week"},
			{Action: "Payment Plan Review", Timeline: "Within 2 weeks"},
		}
	case score >= 0.4:
		return []model.Recommendation{
			{Action: "Financial Wellness Workshop", Timeline: "Within 2 weeks"},
			{Action: "Career Services Referral", Timeline: "Within 3 weeks"},
		}
	default:
		return []model.Recommendation{
			{Action: "Preventive Check-in", Timeline: "Within 1 month"},
		}
	}
}
