package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jfroche/jenkins-job-builder/internal/compiler"
	"github.com/jfroche/jenkins-job-builder/internal/reconcile"
)

// newTestCmd builds the `test` subcommand: render definitions to XML
// without touching any server. Useful for diffing generated output in CI.
func newTestCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "test <path>...",
		Short: "Render YAML definitions to XML without contacting a server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger()

			defs, err := compiler.LoadFiles(args, logger)
			if err != nil {
				return err
			}

			// Offline mode has no plugin inventory; renderers fall back to
			// their built-in default plugin versions.
			set, err := compiler.Compile(defs, compiler.Options{})
			if err != nil {
				return err
			}

			var sink reconcile.Sink
			if outputDir == "" || outputDir == "-" {
				sink = reconcile.NewStreamSink(os.Stdout)
			} else {
				sink, err = reconcile.NewDirSink(outputDir)
				if err != nil {
					return err
				}
			}

			// Render-only: the reconciler never consults the remote or the
			// cache when a sink is set, so neither is wired up.
			r := reconcile.New(nil, nil, logger)

			summary, err := r.Reconcile(cmd.Context(), set, reconcile.Options{Sink: sink})
			if err != nil {
				return err
			}

			if outputDir != "" && outputDir != "-" {
				statusf("%s into %s\n", summary, outputDir)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "",
		"write XML files into this directory instead of stdout (\"-\" for stdout)")

	return cmd
}
