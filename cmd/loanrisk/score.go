package main

import (
	"context"
	"fmt"

	"github.com/charted-solutions/loanrisk/internal/cli"
	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/charted-solutions/loanrisk/internal/scorer"
	"github.com/spf13/cobra"
)

func scoreCmd() *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute risk scores for the imported profiles",
		Long: `Score applies the configured weighted risk model to every unified profile
in the active session. Profiles without delinquency data (SIS-only) cannot be
scored and are reported separately; an absent score is never treated as zero
risk.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd.Context(), explain)
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "print per-factor contributions for each scored profile")

	return cmd
}

func runScore(ctx context.Context, explain bool) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess, err := loadSession(ctx, store)
	if err != nil {
		return err
	}

	cfg, err := scorerConfigFromViper()
	if err != nil {
		return err
	}
	sc, err := scorer.New(cfg)
	if err != nil {
		return err
	}

	scored, unscored := sc.ScoreAll(sess.Profiles)
	sess.SetScored(scored)
	if err := store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	tierCounts := make(map[model.RiskTier]int, len(model.Tiers))
	for _, sp := range scored {
		tierCounts[sp.Tier]++
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Scored %d of %d profiles", len(scored), len(sess.Profiles))))
	for _, tier := range model.Tiers {
		fmt.Printf("  %s: %d\n", cli.FormatTier(tier), tierCounts[tier])
	}
	if len(unscored) > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d profile(s) have no delinquency data and were not scored", len(unscored))))
	}

	if explain {
		fmt.Println()
		for _, sp := range scored {
			fmt.Printf("%s (%s) score %.3f %s\n",
				sp.Profile.DisplayName(), sp.Profile.Key, sp.Score, cli.FormatTier(sp.Tier))
			for _, f := range sp.Factors {
				fmt.Printf("  %-22s sub-score %.3f x weight %.2f = %.3f\n",
					f.Factor, f.SubScore, f.Weight, f.Contribution)
			}
			for _, rec := range scorer.Recommendations(sp.Score) {
				fmt.Printf("  -> %s (%s)\n", rec.Action, rec.Timeline)
			}
		}
	}

	fmt.Println("\nRun 'loanrisk report' for the program-level breakdown.")
	return nil
}
