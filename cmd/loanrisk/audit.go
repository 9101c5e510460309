package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charted-solutions/loanrisk/internal/cli"
	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Print the session audit trail",
		Long: `Audit prints every recorded aggregation run and send-validation decision in
the active session, in the order they happened. Entries are append-only and
survive between invocations until the session is reset.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd.Context())
		},
	}
}

func runAudit(ctx context.Context) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess, err := loadSession(ctx, store)
	if err != nil {
		return err
	}

	entries := sess.Recorder.Entries()
	if len(entries) == 0 {
		fmt.Println(cli.FormatInfo("No audit entries recorded in this session"))
		return nil
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Audit Trail (%d entries)", len(entries))))
	header := fmt.Sprintf("%-20s %-18s %-10s %8s %-8s %s",
		"Timestamp", "Kind", "Actor", "Subjects", "Outcome", "Rules")
	fmt.Println(cli.TableHeaderStyle.Render(header))

	for _, e := range entries {
		outcome := cli.StyleSuccess("allow")
		if !e.Allowed {
			outcome = cli.StyleError("deny")
		}
		rules := "-"
		if len(e.RuleIDs) > 0 {
			rules = strings.Join(e.RuleIDs, ", ")
		}
		fmt.Printf("%-20s %-18s %-10s %8d %-8s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Actor,
			e.SubjectCount, outcome, rules)
	}
	return nil
}
