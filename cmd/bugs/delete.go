package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/present"
	"github.com/Mschirtzinger/bugledger/internal/ui"
)

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <index>",
		Aliases: []string{"rm"},
		GroupID: "bugs",
		Short:   "Delete a resolved bug",
		Long: `Delete the bug at <index> from the ledger.

Only resolved bugs can be deleted; the ledger is read again right before
the delete to check. Deleting shifts the index of every later bug down
by one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}

			return opts.withActions(cmd, func(ctx context.Context, e *engine.Engine, a *present.Actions) error {
				if err := requireIdentity(e); err != nil {
					return err
				}
				row, ok := e.Projection().At(index)
				if !ok {
					return fmt.Errorf("%w: index %d", present.ErrNoSuchRow, index)
				}

				if !yes {
					if !opts.interactive() {
						return fmt.Errorf("refusing to delete #%d without --yes", index)
					}
					confirmed := false
					prompt := huh.NewConfirm().
						Title(fmt.Sprintf("Delete #%d %s?", index, displayID(row.ID))).
						Description("Later bugs move up by one.").
						Value(&confirmed)
					if err := prompt.Run(); err != nil {
						return fmt.Errorf("prompt cancelled: %w", err)
					}
					if !confirmed {
						fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
						return nil
					}
				}

				if err := a.Delete(ctx, index); err != nil {
					if errors.Is(err, engine.ErrPreconditionNotMet) {
						return fmt.Errorf("%w; run 'bugs resolve %d' first", err, index)
					}
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted #%d %s\n", ui.RenderPass("✓"), index, displayID(row.ID))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
