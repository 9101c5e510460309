package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charted-solutions/loanrisk/internal/cli"
	"github.com/charted-solutions/loanrisk/internal/common"
	"github.com/charted-solutions/loanrisk/internal/compliance"
	"github.com/charted-solutions/loanrisk/internal/model"
	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	var (
		templateID string
		tierName   string
		actor      string
		ackBulk    bool
		preview    bool
		vars       []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Validate an outbound communication to at-risk borrowers",
		Long: `Send builds a communication request for every scored borrower at or above
the given risk tier and runs it through the compliance rule set. Every rule is
evaluated and every violation is reported; the send is allowed only when no
rule triggers. Allow or deny, the decision lands in the audit trail.

This command validates and renders; it never delivers. Rendered bodies go to
the institution's delivery system out of band.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tier, err := parseTier(tierName)
			if err != nil {
				return err
			}
			variables, err := parseVars(vars)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), sendOptions{
				templateID: templateID,
				tier:       tier,
				actor:      actor,
				ackBulk:    ackBulk,
				preview:    preview,
				variables:  variables,
			})
		},
	}

	cmd.Flags().StringVar(&templateID, "template", "", "approved template ID (required)")
	cmd.Flags().StringVar(&tierName, "tier", "HIGH", "minimum risk tier to target")
	cmd.Flags().StringVar(&actor, "actor", "analyst", "actor recorded in the audit trail")
	cmd.Flags().BoolVar(&ackBulk, "acknowledge-bulk", false, "acknowledge a send above the bulk recipient threshold")
	cmd.Flags().BoolVar(&preview, "preview", false, "print the first rendered body on an allowed send")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "template fill variable as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

type sendOptions struct {
	templateID string
	tier       model.RiskTier
	actor      string
	ackBulk    bool
	preview    bool
	variables  map[string]string
}

func runSend(ctx context.Context, opts sendOptions) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess, err := loadSession(ctx, store)
	if err != nil {
		return err
	}

	recipients := sess.ScoredAtLeast(opts.tier)
	if len(recipients) == 0 {
		return common.NewUserError(
			fmt.Sprintf("no scored borrowers at tier %s or above; run 'loanrisk score' first", opts.tier),
			common.ErrNoRecords)
	}

	validator := compliance.NewValidator(compliance.NewRegistry(), complianceConfigFromViper())
	req := model.CommunicationRequest{
		TemplateID:       opts.templateID,
		Recipients:       recipients,
		Variables:        opts.variables,
		Actor:            opts.actor,
		BulkAcknowledged: opts.ackBulk,
	}

	verdict := validator.Validate(req)
	sess.Recorder.RecordVerdict(opts.actor, len(recipients), verdict)
	if err := store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if !verdict.Allowed {
		fmt.Println(cli.FormatError(fmt.Sprintf("Send denied: %d rule violation(s)", len(verdict.Violations))))
		for _, v := range verdict.Violations {
			fmt.Printf("  [%s] %s\n", v.RuleID, v.Reason)
		}
		return common.NewUserError("communication blocked by compliance rules", nil)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Send allowed: template %q to %d recipient(s) at tier %s+",
		opts.templateID, len(recipients), opts.tier)))

	bodies, err := validator.Render(req)
	if err != nil {
		return fmt.Errorf("failed to render approved send: %w", err)
	}
	fmt.Printf("  Rendered %d message(s) for delivery\n", len(bodies))

	if opts.preview {
		first := recipients[0]
		fmt.Println("\n" + cli.RenderBox("Preview: "+first.Profile.Email, bodies[first.Profile.Email]))
	}

	return nil
}

// parseVars converts repeated key=value flags into a variable map.
func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
