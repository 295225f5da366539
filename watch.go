package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jfroche/jenkins-job-builder/internal/compiler"
	"github.com/jfroche/jenkins-job-builder/internal/jenkins"
	"github.com/jfroche/jenkins-job-builder/internal/reconcile"
)

// watchDebounce is how long to wait after the last filesystem event before
// re-running an update. Editors fire bursts of writes per save.
const watchDebounce = 500 * time.Millisecond

// newWatchCmd builds the `watch` subcommand: keep running, re-reconciling
// whenever a definition file changes on disk.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>...",
		Short: "Watch definition files and update the server on every change",
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

			return runWatch(ctx, sess, args, logger)
		},
	}
}

// runWatch installs filesystem watches on the definition paths, performs an
// initial update, then loops: debounce events, re-run, repeat until the
// context is cancelled.
func runWatch(ctx context.Context, sess *ServerSession, paths []string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range paths {
		// Watch the containing directory for plain files so renames and
		// editor save-via-tempfile patterns are still seen.
		target := path

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}

		if !info.IsDir() {
			target = filepath.Dir(path)
		}

		if err := watcher.Add(target); err != nil {
			return fmt.Errorf("watching %s: %w", target, err)
		}
	}

	// Initial run brings the server in sync before we start waiting.
	if err := updateOnce(ctx, sess, paths, logger); err != nil {
		logger.Error("initial update failed", slog.String("error", err.Error()))
	}

	changed := make(chan struct{}, 1)

	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		return watchLoop(ctx, watcher, changed, logger)
	})

	grp.Go(func() error {
		return updateLoop(ctx, sess, paths, changed, logger)
	})

	return grp.Wait()
}

// watchLoop forwards relevant fsnotify events to the changed channel.
// The channel has capacity one; a pending notification absorbs further
// events until the update loop drains it.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, changed chan<- struct{}, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if !isDefinitionFile(event.Name) {
				continue
			}

			logger.Debug("definition changed", slog.String("file", event.Name))

			select {
			case changed <- struct{}{}:
			default:
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("filesystem watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// updateLoop waits for change notifications, debounces, and re-runs the
// update. A failed run is logged and the loop keeps watching.
func updateLoop(ctx context.Context, sess *ServerSession, paths []string, changed <-chan struct{}, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}

		// Let the event burst settle before reading files.
		timer := time.NewTimer(watchDebounce)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := updateOnce(ctx, sess, paths, logger); err != nil {
			logger.Error("update failed", slog.String("error", err.Error()))
			continue
		}

		// Persist fingerprints after each successful run so a later crash
		// cannot lose them.
		sess.Cache.Save()
	}
}

// updateOnce compiles the definitions and reconciles them once.
func updateOnce(ctx context.Context, sess *ServerSession, paths []string, logger *slog.Logger) error {
	defs, err := compiler.LoadFiles(paths, logger)
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
		Force: resolvedCfg.IgnoreCache,
	})
	if err != nil {
		return err
	}

	statusf("%s\n", summary)

	return nil
}

// isDefinitionFile reports whether a changed path looks like a YAML
// definition worth re-running for.
func isDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}
