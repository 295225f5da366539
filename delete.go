package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfroche/jenkins-job-builder/internal/entity"
)

// newDeleteCmd builds the `delete` subcommand: remove named jobs or views
// from the server and invalidate their cache records.
func newDeleteCmd() *cobra.Command {
	var asView bool

	cmd := &cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete named jobs (or views with --view) from the server",
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

			kind := entity.KindJob
			if asView {
				kind = entity.KindView
			}

			for _, name := range args {
				if err := sess.Reconciler.DeleteEntity(ctx, name, kind); err != nil {
					return fmt.Errorf("deleting %s %q: %w", kind, name, err)
				}

				statusf("deleted %s %s\n", kind, name)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asView, "view", false, "delete views instead of jobs")

	return cmd
}

// newDeleteAllCmd builds the `delete-all` subcommand: sweep every job and
// view off the server, with no managed check.
func newDeleteAllCmd() *cobra.Command {
	var jobsOnly, viewsOnly bool

	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every job and view from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jobsOnly && viewsOnly {
				return fmt.Errorf("--jobs-only and --views-only are mutually exclusive")
			}

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

			total := 0

			if !viewsOnly {
				n, err := sess.Reconciler.DeleteAll(ctx, entity.KindJob)
				if err != nil {
					return fmt.Errorf("deleting jobs: %w", err)
				}

				total += n
			}

			if !jobsOnly {
				n, err := sess.Reconciler.DeleteAll(ctx, entity.KindView)
				if err != nil {
					return fmt.Errorf("deleting views: %w", err)
				}

				total += n
			}

			statusf("%d entities deleted\n", total)

			return nil
		},
	}

	cmd.Flags().BoolVar(&jobsOnly, "jobs-only", false, "only delete jobs")
	cmd.Flags().BoolVar(&viewsOnly, "views-only", false, "only delete views")

	return cmd
}
