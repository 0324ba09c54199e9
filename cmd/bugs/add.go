package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/present"
	"github.com/Mschirtzinger/bugledger/internal/ui"
)

func newAddCommand(opts *RootOptions) *cobra.Command {
	draft := bug.NewDraft()

	cmd := &cobra.Command{
		Use:     "add",
		GroupID: "bugs",
		Short:   "Add a bug to the ledger",
		Long: `Add a bug to the ledger.

When --id or --description is missing and stdin is a terminal, a form
asks for the missing fields. Criticality is one of Low, Medium or High
and defaults to Low.

Example usage:
  bugs add --id BUG-1 --description "null pointer" --criticality Medium
  bugs add                       # interactive form`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idSet := cmd.Flags().Changed("id")
			descSet := cmd.Flags().Changed("description")

			if (!idSet || !descSet) && opts.interactive() {
				if err := draftForm(draft).Run(); err != nil {
					return fmt.Errorf("form cancelled: %w", err)
				}
			}

			// Validate before connecting
			if bug.Encode(draft.Criticality) == bug.InvalidCode {
				return fmt.Errorf("%w: %q (want Low, Medium or High)", bug.ErrInvalidCriticality, draft.Criticality)
			}

			return opts.withActions(cmd, func(ctx context.Context, e *engine.Engine, a *present.Actions) error {
				if err := requireIdentity(e); err != nil {
					return err
				}
				id := draft.ID
				if err := a.Add(ctx, draft); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s Added %s\n", ui.RenderPass("✓"), displayID(id))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&draft.ID, "id", "", "bug id")
	cmd.Flags().StringVarP(&draft.Description, "description", "d", "", "bug description")
	cmd.Flags().StringVarP(&draft.Criticality, "criticality", "c", bug.CriticalityLow.String(), "criticality (Low|Medium|High)")
	return cmd
}

// draftForm asks for the draft's fields.
func draftForm(d *bug.Draft) *huh.Form {
	options := make([]huh.Option[string], 0, len(bug.Selectable))
	for _, c := range bug.Selectable {
		options = append(options, huh.NewOption(c.String(), c.String()))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bug ID").
				Value(&d.ID),
			huh.NewText().
				Title("Description").
				Value(&d.Description),
			huh.NewSelect[string]().
				Title("Criticality").
				Options(options...).
				Value(&d.Criticality),
		),
	)
}

func displayID(id string) string {
	if id == "" {
		return "bug without id (hidden from lists)"
	}
	return id
}
