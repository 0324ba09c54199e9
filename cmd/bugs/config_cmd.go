package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/bugledger/internal/config"
	"github.com/Mschirtzinger/bugledger/internal/ui"
)

func newConfigCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: "advanced",
		Short:   "Manage configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Long: `Write the built-in settings to a TOML file.

The default path is .bugledger/config.toml. An existing file is kept
unless --force is given.`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.RenderPass("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if used := opts.viper.ConfigFileUsed(); used != "" {
				fmt.Fprintf(out, "# from %s\n", used)
			}
			keys := opts.viper.AllKeys()
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(out, "%s = %v\n", key, opts.viper.Get(key))
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
