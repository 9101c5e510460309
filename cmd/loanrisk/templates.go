package main

import (
	"fmt"

	"github.com/charted-solutions/loanrisk/internal/cli"
	"github.com/charted-solutions/loanrisk/internal/compliance"
	"github.com/spf13/cobra"
)

func templatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage the approved communication templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the approved templates",
		RunE: func(_ *cobra.Command, _ []string) error {
			registry := compliance.NewRegistry()
			fmt.Println(cli.FormatTitle("Approved Templates"))
			for _, id := range registry.IDs() {
				tmpl, err := registry.Get(id)
				if err != nil {
					return err
				}
				fields := make([]string, 0, len(tmpl.AllowedFields))
				for _, f := range tmpl.AllowedFields {
					fields = append(fields, string(f))
				}
				fmt.Printf("%s\n", cli.BoldStyle.Render(id))
				fmt.Printf("  Subject: %s\n", tmpl.Subject)
				fmt.Printf("  Permitted fields: %v\n", fields)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print one template's body",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tmpl, err := compliance.NewRegistry().Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(cli.RenderBox(tmpl.Subject, tmpl.Body))
			return nil
		},
	})

	return cmd
}
