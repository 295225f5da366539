package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfroche/jenkins-job-builder/internal/compiler"
	"github.com/jfroche/jenkins-job-builder/internal/jenkins"
	"github.com/jfroche/jenkins-job-builder/internal/reconcile"
)

// newUpdateCmd builds the `update` subcommand: compile definitions and
// reconcile them against the configured server.
func newUpdateCmd() *cobra.Command {
	var (
		deleteOld bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "update <path>...",
		Short: "Compile YAML definitions and upload changed jobs/views",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			defs, err := compiler.LoadFiles(args, logger)
			if err != nil {
				return err
			}

			plugins, err := sess.Server.Plugins(ctx)
			if err != nil {
				return fmt.Errorf("fetching plugin inventory: %w", err)
			}

			set, err := compiler.Compile(defs, compiler.Options{
				PluginVersions: jenkins.PluginVersions(plugins),
			})
			if err != nil {
				return err
			}

			summary, err := sess.Reconciler.Reconcile(ctx, set, reconcile.Options{
				Force: force || resolvedCfg.IgnoreCache,
			})
			if err != nil {
				return err
			}

			statusf("%s\n", summary)

			if deleteOld {
				removed, err := sess.Reconciler.DeleteObsolete(ctx, set.JobNames(), set.ViewNames())
				if err != nil {
					return fmt.Errorf("removing obsolete entities: %w", err)
				}

				statusf("%d obsolete managed entities removed\n", removed)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteOld, "delete-old", false,
		"delete managed jobs/views on the server that are absent from the definitions")
	cmd.Flags().BoolVar(&force, "force", false,
		"upload every entity even when the fingerprint cache says it is unchanged")

	return cmd
}
