package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

// newPluginsCmd builds the `plugins` subcommand: print the server's
// installed plugin inventory as a table.
func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List plugins installed on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireServerURL(); err != nil {
				return err
			}

			logger := buildLogger()
			ctx := shutdownContext(cmd.Context(), logger)

			sess, err := newServerSession(resolvedCfg, flagFlushCache, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			plugins, err := sess.Server.Plugins(ctx)
			if err != nil {
				return fmt.Errorf("fetching plugin inventory: %w", err)
			}

			sort.Slice(plugins, func(i, j int) bool {
				return plugins[i].ShortName < plugins[j].ShortName
			})

			rows := make([][]string, 0, len(plugins))
			for _, p := range plugins {
				rows = append(rows, []string{p.ShortName, p.Version, p.LongName})
			}

			printTable(os.Stdout, []string{"NAME", "VERSION", "DESCRIPTION"}, rows)

			return nil
		},
	}
}
