package model

// UnknownProgram is the bucket for scored borrowers with no major on file.
// They are reported explicitly rather than dropped or merged elsewhere.
const UnknownProgram = "Unknown"

// ProgramStatistic is the per-major risk rollup. Derived data, recomputed
// fully on each aggregation run.
type ProgramStatistic struct {
	Major              string
	Count              int
	MeanScore          float64
	TierCounts         map[RiskTier]int
	MeanBalance        float64
	TotalBalance       float64
	MeanDaysDelinquent float64
	Rank               int
	LowConfidence      bool
}

// CDRProjection estimates the cohort default rate implied by the current
// tier mix, and the improvement available from intervention.
type CDRProjection struct {
	ProjectedDefaults float64
	CurrentPct        float64
	ImprovedPct       float64
	DeltaPct          float64
}

// ProgramReport is the output of one aggregation run.
type ProgramReport struct {
	Programs     []ProgramStatistic
	UnknownCount int
	TotalScored  int
	TotalBalance float64
	CDR          CDRProjection
}
