package scorer

import (
	"fmt"
	"math"

	"github.com/charted-solutions/loanrisk/internal/model"
)

// ConfigError reports a malformed scoring configuration. Fatal to the
// scoring call; the configuration must be fixed before scoring can proceed.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scoring config %q: %s", e.Option, e.Reason)
}

// Weights holds the factor weights. They must sum to 1.0.
type Weights struct {
	DaysDelinquent     float64
	OutstandingBalance float64
}

// TierBoundaries are the closed-open score cutoffs: [0, Medium) is LOW,
// [Medium, High) is MEDIUM, [High, Critical) is HIGH, [Critical, inf) is
// CRITICAL. A score exactly on a boundary falls into the higher tier.
type TierBoundaries struct {
	Medium   float64
	High     float64
	Critical float64
}

// Config holds every knob of the scoring function. All values are
// externally configurable; defaults are documented on DefaultConfig.
type Config struct {
	Weights Weights

	// DelinquencyKnots are the day thresholds of the piecewise sub-score
	// ramp, strictly increasing.
	DelinquencyKnots [4]float64

	// BalanceBands are the dollar thresholds of the balance sub-score
	// ramp, strictly increasing.
	BalanceBands [4]float64

	Tiers TierBoundaries
}

// knotScores are the sub-score values the piecewise ramps pass through at
// each configured knot. Fixed: the knots move, the shape does not.
var (
	delinquencyKnotScores = [4]float64{0.15, 0.40, 0.70, 0.90}
	balanceKnotScores     = [4]float64{0.20, 0.45, 0.70, 0.90}
)

// DefaultConfig returns the documented default scoring configuration:
// delinquency weighted 0.6 with knots at 30/60/90/120 days, balance
// weighted 0.4 with bands at $5k/$15k/$30k/$50k, tier cutoffs at
// 0.25/0.50/0.75.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			DaysDelinquent:     0.6,
			OutstandingBalance: 0.4,
		},
		DelinquencyKnots: [4]float64{30, 60, 90, 120},
		BalanceBands:     [4]float64{5000, 15000, 30000, 50000},
		Tiers: TierBoundaries{
			Medium:   0.25,
			High:     0.50,
			Critical: 0.75,
		},
	}
}

// Validate checks the configuration, returning a *ConfigError naming the
// first malformed option.
func (c Config) Validate() error {
	sum := c.Weights.DaysDelinquent + c.Weights.OutstandingBalance
	if math.Abs(sum-1.0) > 1e-9 {
		return &ConfigError{
			Option: "risk.weights",
			Reason: fmt.Sprintf("factor weights must sum to 1.0, got %.4f", sum),
		}
	}
	if c.Weights.DaysDelinquent < 0 || c.Weights.OutstandingBalance < 0 {
		return &ConfigError{Option: "risk.weights", Reason: "weights must be non-negative"}
	}

	if err := strictlyIncreasing("risk.bands.days_delinquent", c.DelinquencyKnots[:], 0); err != nil {
		return err
	}
	if err := strictlyIncreasing("risk.bands.outstanding_balance", c.BalanceBands[:], 0); err != nil {
		return err
	}

	tiers := []float64{c.Tiers.Medium, c.Tiers.High, c.Tiers.Critical}
	if err := strictlyIncreasing("risk.tiers", tiers, 0); err != nil {
		return err
	}
	if c.Tiers.Critical > 1.0 {
		return &ConfigError{Option: "risk.tiers.critical", Reason: "boundary exceeds the maximum score of 1.0"}
	}
	return nil
}

func strictlyIncreasing(option string, values []float64, floor float64) error {
	prev := floor
	for i, v := range values {
		if v <= prev {
			return &ConfigError{
				Option: option,
				Reason: fmt.Sprintf("thresholds must be strictly increasing, position %d is %.4f", i, v),
			}
		}
		prev = v
	}
	return nil
}

// tierFor maps a final weighted score onto its tier using closed-open
// interval semantics.
func (c Config) tierFor(score float64) model.RiskTier {
	switch {
	case score >= c.Tiers.Critical:
		return model.TierCritical
	case score >= c.Tiers.High:
		return model.TierHigh
	case score >= c.Tiers.Medium:
		return model.TierMedium
	default:
		return model.TierLow
	}
}
