package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/charted-solutions/loanrisk/internal/cli"
	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/charted-solutions/loanrisk/internal/csvio"
	"github.com/charted-solutions/loanrisk/internal/linker"
	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/charted-solutions/loanrisk/internal/schema"
	"github.com/charted-solutions/loanrisk/internal/session"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	var nsldsPath, sisPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import NSLDS and SIS extracts and link borrower records",
		Long: `Import reads a NSLDS delinquency CSV and a SIS enrollment CSV, maps their
columns onto the canonical field set, links records across the two sources by
exact identifiers, and starts a fresh analysis session.

Records that share no identifier are kept as single-source profiles; they are
never merged by name or email similarity. Conflicting identifier matches are
flagged, not silently merged.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd.Context(), nsldsPath, sisPath)
		},
	}

	cmd.Flags().StringVar(&nsldsPath, "nslds", "", "path to the NSLDS delinquency CSV (required)")
	cmd.Flags().StringVar(&sisPath, "sis", "", "path to the SIS enrollment CSV (required)")
	_ = cmd.MarkFlagRequired("nslds")
	_ = cmd.MarkFlagRequired("sis")

	return cmd
}

func runImport(ctx context.Context, nsldsPath, sisPath string) error {
	nslds, err := readAndNormalize(ctx, nsldsPath, schema.ModeNSLDS)
	if err != nil {
		return err
	}
	sis, err := readAndNormalize(ctx, sisPath, schema.ModeSIS)
	if err != nil {
		return err
	}

	result := linker.Link(nslds, sis)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess := session.New()
	sess.SetLinkResult(result)
	if err := store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	duplicates := 0
	for _, p := range result.Profiles {
		duplicates += p.Duplicates
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d NSLDS and %d SIS records", len(nslds), len(sis))))
	fmt.Printf("  Unified profiles: %d (matched: %d)\n", len(result.Profiles), result.Matched())
	if duplicates > 0 {
		fmt.Printf("  Duplicate rows coalesced: %d\n", duplicates)
	}
	if len(result.Conflicts) > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d linkage conflict(s) flagged for review:", len(result.Conflicts))))
		for _, c := range result.Conflicts {
			fmt.Printf("  %s: SSN match %s vs student ID match %s (%s)\n",
				c.Key, c.SSNMatch, c.StudentIDMatch, c.Detail)
		}
	}
	fmt.Println("\nRun 'loanrisk score' to compute risk scores.")

	return nil
}

// readAndNormalize reads one CSV extract and maps every row onto the
// canonical field set for the given import mode.
func readAndNormalize(ctx context.Context, path string, mode schema.Mode) ([]model.NormalizedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot open %s file", mode), err)
	}
	defer func() { _ = f.Close() }()

	table, err := csvio.NewReader().Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file %s: %w", mode, path, err)
	}
	if len(table.Rows) == 0 {
		return nil, common.NewUserError(fmt.Sprintf("%s file %s has no data rows", mode, path), common.ErrNoRecords)
	}

	mapping, err := schema.Normalize(table, mode)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("cannot map %s columns", mode), err)
	}

	bar := progressbar.NewOptions(len(table.Rows),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("Normalizing %s rows...", mode)),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	records := make([]model.NormalizedRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		rec, err := mapping.Apply(row, i+1)
		if err != nil {
			return nil, fmt.Errorf("%s file %s: %w", mode, path, err)
		}
		records = append(records, rec)
		if err := bar.Add(1); err != nil {
			slog.Debug("progress bar update failed", "error", err)
		}
	}

	slog.Info("Normalized import", "mode", mode.String(), "rows", len(records), "file", path)
	return records, nil
}
