package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/present"
	"github.com/Mschirtzinger/bugledger/internal/ui"
)

func newResolveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "resolve <index>",
		GroupID: "bugs",
		Short:   "Mark a bug as resolved",
		Long: `Mark the bug at <index> as resolved.

Resolving cannot be undone. The index is checked against a fresh load
of the ledger right before the update is sent.`,
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
				row, _ := e.Projection().At(index)
				if err := a.Resolve(ctx, index); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s Resolved #%d %s\n", ui.RenderPass("✓"), index, displayID(row.ID))
				return nil
			})
		},
	}
}

func parseIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid index %q: must be a non-negative integer", s)
	}
	return index, nil
}
