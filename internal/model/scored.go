package model

// RiskTier is the discrete risk bucket derived from a continuous score.
type RiskTier string

// Risk tier constants, lowest to highest.
const (
	TierLow      RiskTier = "LOW"
	TierMedium   RiskTier = "MEDIUM"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

// Tiers lists all risk tiers in ascending order.
var Tiers = []RiskTier{TierLow, TierMedium, TierHigh, TierCritical}

// Order returns the tier's position in the ascending tier ordering, with
// unknown tiers sorting below LOW.
func (t RiskTier) Order() int {
	switch t {
	case TierLow:
		return 1
	case TierMedium:
		return 2
	case TierHigh:
		return 3
	case TierCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether t is the same tier as other or higher.
func (t RiskTier) AtLeast(other RiskTier) bool {
	return t.Order() >= other.Order()
}

// FactorContribution records one scoring factor's share of the final score,
// kept for explainability and audit.
type FactorContribution struct {
	Factor       string
	SubScore     float64 // normalized factor value in [0,1]
	Weight       float64
	Contribution float64 // SubScore * Weight
}

// ScoredProfile is a unified profile plus its computed risk score, tier,
// and the contributing factors.
type ScoredProfile struct {
	Profile UnifiedProfile
	Score   float64
	Tier    RiskTier
	Factors []FactorContribution
}

// Recommendation is a suggested intervention action for a scored borrower.
type Recommendation struct {
	Action   string
	Timeline string
}
