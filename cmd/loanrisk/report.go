package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charted-solutions/loanrisk/internal/aggregator"
	"github.com/charted-solutions/loanrisk/internal/cli"
	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var minCohort int
	var actor string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate risk by academic program",
		Long: `Report groups the scored profiles by academic program and prints per-program
risk statistics, ranked by mean risk score. Programs below the minimum cohort
size are reported with a low-confidence flag rather than suppressed. The run
is recorded in the session audit trail.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := aggregatorConfigFromViper()
			if cmd.Flags().Changed("min-cohort") {
				cfg.MinCohort = minCohort
			}
			return runReport(cmd.Context(), cfg, actor)
		},
	}

	cmd.Flags().IntVar(&minCohort, "min-cohort", 0, "borrower count below which a program is flagged low-confidence")
	cmd.Flags().StringVar(&actor, "actor", "analyst", "actor recorded in the audit trail")

	return cmd
}

func runReport(ctx context.Context, cfg aggregator.Config, actor string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess, err := loadSession(ctx, store)
	if err != nil {
		return err
	}
	if len(sess.Scored) == 0 {
		return common.NewUserError("no scored profiles; run 'loanrisk score' first", common.ErrNoRecords)
	}

	report := aggregator.Aggregate(sess.Scored, cfg)
	sess.Recorder.RecordAggregation(actor, report.TotalScored)
	if err := store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	printReport(report)
	return nil
}

func printReport(report model.ProgramReport) {
	fmt.Println(cli.FormatTitle("Risk by Academic Program"))

	header := fmt.Sprintf("%-4s %-24s %6s %10s %8s %8s %8s %8s",
		"Rank", "Program", "Count", "Mean", "LOW", "MED", "HIGH", "CRIT")
	fmt.Println(cli.TableHeaderStyle.Render(header))

	for _, p := range report.Programs {
		name := p.Major
		if p.LowConfidence {
			name += " *"
		}
		line := fmt.Sprintf("%-4d %-24s %6d %10.3f %8d %8d %8d %8d",
			p.Rank, name, p.Count, p.MeanScore,
			p.TierCounts[model.TierLow], p.TierCounts[model.TierMedium],
			p.TierCounts[model.TierHigh], p.TierCounts[model.TierCritical])
		if p.LowConfidence {
			fmt.Println(cli.SubtleStyle.Render(line))
		} else {
			fmt.Println(line)
		}
	}

	var notes []string
	notes = append(notes, fmt.Sprintf("Scored borrowers: %d", report.TotalScored))
	notes = append(notes, fmt.Sprintf("Total outstanding balance: $%.2f", report.TotalBalance))
	if report.UnknownCount > 0 {
		notes = append(notes, fmt.Sprintf("Borrowers without a program: %d (reported as %q)",
			report.UnknownCount, model.UnknownProgram))
	}
	notes = append(notes, "* program below the minimum cohort size; statistics are low-confidence")
	fmt.Println("\n" + strings.Join(notes, "\n"))

	cdr := fmt.Sprintf(
		"Projected defaults:   %.2f borrowers\nCurrent trajectory:   %.2f%%\nWith intervention:    %.2f%%\nPotential reduction:  %.2f points",
		report.CDR.ProjectedDefaults, report.CDR.CurrentPct, report.CDR.ImprovedPct, report.CDR.DeltaPct)
	fmt.Println("\n" + cli.RenderBox("Cohort Default Rate Projection", cdr))
}
