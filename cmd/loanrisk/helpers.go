package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charted-solutions/loanrisk/internal/aggregator"
	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/charted-solutions/loanrisk/internal/compliance"
	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/charted-solutions/loanrisk/internal/scorer"
	"github.com/charted-solutions/loanrisk/internal/session"
	"github.com/spf13/viper"
)

// setConfigDefaults registers the documented defaults for every tunable.
// Values in the config file or LOANRISK_* environment override them.
func setConfigDefaults() {
	viper.SetDefault("database.path", "$HOME/.config/loanrisk/session.db")

	viper.SetDefault("risk.weights.days_delinquent", 0.6)
	viper.SetDefault("risk.weights.outstanding_balance", 0.4)
	viper.SetDefault("risk.bands.days_delinquent", []float64{30, 60, 90, 120})
	viper.SetDefault("risk.bands.outstanding_balance", []float64{5000, 15000, 30000, 50000})
	viper.SetDefault("risk.tiers.medium", 0.25)
	viper.SetDefault("risk.tiers.high", 0.50)
	viper.SetDefault("risk.tiers.critical", 0.75)

	viper.SetDefault("compliance.forbidden_tokens", []string{"ssn", "gpa", "account_number"})
	viper.SetDefault("compliance.bulk_threshold", 500)

	viper.SetDefault("report.min_cohort", 10)
	viper.SetDefault("report.default_rates.low", 0.05)
	viper.SetDefault("report.default_rates.medium", 0.20)
	viper.SetDefault("report.default_rates.high", 0.45)
	viper.SetDefault("report.default_rates.critical", 0.45)
	viper.SetDefault("report.intervention_success", 0.30)
}

// openStore opens the session store at the configured path.
func openStore() (*session.Store, error) {
	dbPath := expandPath(viper.GetString("database.path"))
	store, err := session.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, nil
}

// loadSession loads the active session, translating the missing-session
// case into actionable guidance.
func loadSession(ctx context.Context, store *session.Store) (*session.Session, error) {
	sess, err := store.Load(ctx)
	if err != nil {
		if err == common.ErrNoSession {
			return nil, common.NewUserError("no active session; run 'loanrisk import' first", err)
		}
		return nil, err
	}
	return sess, nil
}

// expandPath expands $VARS and a leading tilde in a configured path.
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return path
}

// scorerConfigFromViper assembles the scoring configuration from the
// configured values. Validation happens in scorer.New.
func scorerConfigFromViper() (scorer.Config, error) {
	cfg := scorer.Config{
		Weights: scorer.Weights{
			DaysDelinquent:     viper.GetFloat64("risk.weights.days_delinquent"),
			OutstandingBalance: viper.GetFloat64("risk.weights.outstanding_balance"),
		},
		Tiers: scorer.TierBoundaries{
			Medium:   viper.GetFloat64("risk.tiers.medium"),
			High:     viper.GetFloat64("risk.tiers.high"),
			Critical: viper.GetFloat64("risk.tiers.critical"),
		},
	}

	knots, err := floatQuad("risk.bands.days_delinquent")
	if err != nil {
		return scorer.Config{}, err
	}
	cfg.DelinquencyKnots = knots

	bands, err := floatQuad("risk.bands.outstanding_balance")
	if err != nil {
		return scorer.Config{}, err
	}
	cfg.BalanceBands = bands

	return cfg, nil
}

// floatQuad reads a configured list of exactly four numbers. Viper hands
// back differently typed slices depending on whether the value came from a
// default, YAML, or the environment.
func floatQuad(key string) ([4]float64, error) {
	raw := viper.Get(key)

	var values []float64
	switch v := raw.(type) {
	case []float64:
		values = v
	case []int:
		for _, n := range v {
			values = append(values, float64(n))
		}
	case []any:
		for _, item := range v {
			f, err := toFloat(item)
			if err != nil {
				return [4]float64{}, fmt.Errorf("config %s: %w", key, err)
			}
			values = append(values, f)
		}
	case string:
		for _, field := range strings.Fields(v) {
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return [4]float64{}, fmt.Errorf("config %s: value %q is not numeric", key, field)
			}
			values = append(values, f)
		}
	default:
		return [4]float64{}, fmt.Errorf("config %s: unsupported value %v", key, raw)
	}

	if len(values) != 4 {
		return [4]float64{}, fmt.Errorf("config %s: expected 4 thresholds, got %d", key, len(values))
	}
	var out [4]float64
	copy(out[:], values)
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

// complianceConfigFromViper assembles the communication validation knobs.
func complianceConfigFromViper() compliance.Config {
	return compliance.Config{
		ForbiddenTokens: viper.GetStringSlice("compliance.forbidden_tokens"),
		BulkThreshold:   viper.GetInt("compliance.bulk_threshold"),
	}
}

// aggregatorConfigFromViper assembles the program aggregation knobs.
func aggregatorConfigFromViper() aggregator.Config {
	return aggregator.Config{
		MinCohort: viper.GetInt("report.min_cohort"),
		DefaultRates: map[model.RiskTier]float64{
			model.TierLow:      viper.GetFloat64("report.default_rates.low"),
			model.TierMedium:   viper.GetFloat64("report.default_rates.medium"),
			model.TierHigh:     viper.GetFloat64("report.default_rates.high"),
			model.TierCritical: viper.GetFloat64("report.default_rates.critical"),
		},
		InterventionSuccess: viper.GetFloat64("report.intervention_success"),
	}
}

// parseTier resolves a user-supplied tier name.
func parseTier(name string) (model.RiskTier, error) {
	upper := model.RiskTier(strings.ToUpper(strings.TrimSpace(name)))
	for _, t := range model.Tiers {
		if t == upper {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown risk tier %q (valid: LOW, MEDIUM, HIGH, CRITICAL)", name)
}
