package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/present"
	"github.com/Mschirtzinger/bugledger/internal/ui"
)

func newListCommand(opts *RootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		GroupID: "bugs",
		Short:   "List all bugs on the ledger",
		Long: `List every bug currently on the ledger, in ledger order.

The # column is the index to pass to 'bugs resolve' and 'bugs delete'.
Records without an id are not shown but keep their position.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ui.Formats {
				if f == format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(ui.Formats, ", "))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withActions(cmd, func(ctx context.Context, e *engine.Engine, a *present.Actions) error {
				if _, ok := e.Session().Acting(); !ok && format == ui.FormatTable {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s offers no identities; nothing was loaded\n", ui.RenderWarn("⚠"), e.Session().Endpoint())
				}
				return ui.WriteView(cmd.OutOrStdout(), format, a.View())
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", ui.FormatTable, "output format (table|json|yaml)")
	return cmd
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: "advanced",
		Short:   "Show ledger connection status",
		Long: `Show the ledger connection and a summary of its contents.

Shows:
  - Driver and endpoint
  - Acting identity and how many identities the endpoint offers
  - Bug counts from a fresh load`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withActions(cmd, func(ctx context.Context, e *engine.Engine, a *present.Actions) error {
				out := cmd.OutOrStdout()
				s := e.Session()

				fmt.Fprintf(out, "\n%s Bug Ledger Status\n\n", ui.RenderAccent("📊"))
				fmt.Fprintf(out, "   Driver:   %s\n", opts.config.Ledger.Driver)
				fmt.Fprintf(out, "   Endpoint: %s\n", s.Endpoint())

				ids, _ := s.ListIdentities(ctx)
				acting, ok := s.Acting()
				if !ok {
					fmt.Fprintf(out, "   Identity: %s none (commands unavailable)\n", ui.RenderWarn("⚠"))
					fmt.Fprintf(out, "   State:    %s\n\n", e.State())
					return nil
				}
				fmt.Fprintf(out, "   Identity: %s (%d available)\n", acting, len(ids))
				fmt.Fprintf(out, "   State:    %s\n", e.State())

				v := a.View()
				fmt.Fprintf(out, "\n   Bugs:     %d\n", len(v.Rows))
				fmt.Fprintf(out, "   Open:     %d\n", v.Open)
				fmt.Fprintf(out, "   Resolved: %d\n", len(v.Rows)-v.Open)
				if v.Hidden > 0 {
					fmt.Fprintf(out, "   Hidden:   %d (no id)\n", v.Hidden)
				}
				fmt.Fprintf(out, "   Loaded:   %s\n\n", since(v.LoadedAt))
				return nil
			})
		},
	}
}
