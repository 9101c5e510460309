package main

import (
	"context"
	"fmt"

	"github.com/charted-solutions/loanrisk/internal/cli"
	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/spf13/cobra"
)

func resetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the active session",
		Long: `Reset deletes the active session entirely: unified profiles, scores,
linkage conflicts, and the audit trail. Session data is retained only for the
lifetime of the session, so reset is the retention boundary.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd.Context(), force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	return cmd
}

func runReset(ctx context.Context, force bool) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess, err := store.Load(ctx)
	if err == common.ErrNoSession {
		fmt.Println(cli.FormatInfo("No active session. Nothing to reset."))
		return nil
	}
	if err != nil {
		return err
	}

	if !force {
		fmt.Printf("This will delete the session with %d profile(s) and %d audit entrie(s).\n",
			len(sess.Profiles), sess.Recorder.Len())
		fmt.Printf("Are you sure you want to continue? [y/N]: ")

		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if response != "y" && response != "Y" {
			fmt.Println("Reset canceled.")
			return nil
		}
	}

	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}

	fmt.Println(cli.FormatSuccess("Session reset. Run 'loanrisk import' to start a new analysis."))
	return nil
}
