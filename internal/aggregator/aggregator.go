// Package aggregator rolls per-borrower risk up into per-academic-program
// statistics and projects the cohort default rate implied by the tier mix.
// Everything here is recomputed fully on each run; nothing is mutated
// incrementally.
package aggregator

import (
	"sort"

	"github.com/charted-solutions/loanrisk/internal/model"
)

// Config holds the aggregation knobs.
type Config struct {
	// MinCohort is the borrower count below which a program is flagged as
	// statistically low-confidence. The program is still reported;
	// suppressing sparse-but-real data would mask risk in small programs.
	MinCohort int

	// DefaultRates estimate the share of each tier expected to default.
	DefaultRates map[model.RiskTier]float64

	// InterventionSuccess is the fraction of HIGH and CRITICAL defaults
	// assumed preventable by intervention.
	InterventionSuccess float64
}

// DefaultConfig returns the documented defaults: minimum cohort of 10,
// default-rate estimates of 5/20/45/45 percent for LOW through CRITICAL,
// and a 30 percent intervention success rate.
func DefaultConfig() Config {
	return Config{
		MinCohort: 10,
		DefaultRates: map[model.RiskTier]float64{
			model.TierLow:      0.05,
			model.TierMedium:   0.20,
			model.TierHigh:     0.45,
			model.TierCritical: 0.45,
		},
		InterventionSuccess: 0.30,
	}
}

// Aggregate groups scored profiles by major and computes per-program
// statistics. Profiles with no major land in the explicit "Unknown" bucket.
// Programs are ranked by mean score descending, ties broken by descending
// borrower count, then program name ascending, so reports are reproducible.
func Aggregate(scored []model.ScoredProfile, cfg Config) model.ProgramReport {
	groups := make(map[string][]model.ScoredProfile)
	for _, sp := range scored {
		major := sp.Profile.Major
		if major == "" {
			major = model.UnknownProgram
		}
		groups[major] = append(groups[major], sp)
	}

	report := model.ProgramReport{TotalScored: len(scored)}
	for major, members := range groups {
		stat := model.ProgramStatistic{
			Major:      major,
			Count:      len(members),
			TierCounts: make(map[model.RiskTier]int, len(model.Tiers)),
		}
		var scoreSum, balanceSum, daysSum float64
		for _, sp := range members {
			scoreSum += sp.Score
			balanceSum += sp.Profile.OutstandingBalance
			daysSum += sp.Profile.DaysDelinquent
			stat.TierCounts[sp.Tier]++
		}
		n := float64(stat.Count)
		stat.MeanScore = scoreSum / n
		stat.TotalBalance = balanceSum
		stat.MeanBalance = balanceSum / n
		stat.MeanDaysDelinquent = daysSum / n
		stat.LowConfidence = stat.Count < cfg.MinCohort

		if major == model.UnknownProgram {
			report.UnknownCount = stat.Count
		}
		report.TotalBalance += balanceSum
		report.Programs = append(report.Programs, stat)
	}

	sort.Slice(report.Programs, func(i, j int) bool {
		a, b := report.Programs[i], report.Programs[j]
		if a.MeanScore != b.MeanScore {
			return a.MeanScore > b.MeanScore
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Major < b.Major
	})
	for i := range report.Programs {
		report.Programs[i].Rank = i + 1
	}

	report.CDR = projectCDR(scored, cfg)
	return report
}

// projectCDR estimates the cohort default rate from the tier mix, and the
// rate achievable if intervention succeeds on the configured share of
// HIGH and CRITICAL borrowers.
func projectCDR(scored []model.ScoredProfile, cfg Config) model.CDRProjection {
	total := len(scored)
	if total == 0 {
		return model.CDRProjection{}
	}

	var projected, preventable float64
	for _, sp := range scored {
		rate := cfg.DefaultRates[sp.Tier]
		projected += rate
		if sp.Tier == model.TierHigh || sp.Tier == model.TierCritical {
			preventable += rate * cfg.InterventionSuccess
		}
	}

	current := projected / float64(total) * 100
	improved := (projected - preventable) / float64(total) * 100

	return model.CDRProjection{
		ProjectedDefaults: projected,
		CurrentPct:        current,
		ImprovedPct:       improved,
		DeltaPct:          current - improved,
	}
}
