package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfroche/jenkins-job-builder/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath  string
	flagURL         string
	flagUser        string
	flagToken       string
	flagVerbose     bool
	flagQuiet       bool
	flagIgnoreCache bool
	flagFlushCache  bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Resolved

// httpClientTimeout is the default timeout for HTTP requests. Prevents hung
// connections from blocking CLI commands indefinitely.
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jenkins-job-builder",
		Short: "Manage Jenkins jobs and views from YAML definitions",
		Long: "Compile declarative YAML job/view definitions into Jenkins XML and\n" +
			"reconcile them against a live server, uploading only what changed.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagURL, "url", "", "Jenkins server URL")
	cmd.PersistentFlags().StringVar(&flagUser, "user", "", "Jenkins API user")
	cmd.PersistentFlags().StringVar(&flagToken, "token", "", "Jenkins API token")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().BoolVar(&flagIgnoreCache, "ignore-cache", false, "upload every entity even if unchanged")
	cmd.PersistentFlags().BoolVar(&flagFlushCache, "flush-cache", false, "discard the fingerprint cache before running")

	// Register subcommands.
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newTestCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newDeleteAllCmd())
	cmd.AddCommand(newPluginsCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg for use by
// subcommands.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		URL:        flagURL,
		User:       flagUser,
		Token:      flagToken,
	}

	// Only pass --ignore-cache to the resolver if the user explicitly set
	// it, so a config-file value survives when the flag is absent.
	if cmd.Flags().Changed("ignore-cache") {
		cli.IgnoreCache = &flagIgnoreCache
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// requireServerURL guards commands that talk to a server. The `test`
// command renders offline and has no such requirement.
func requireServerURL() error {
	if resolvedCfg == nil || resolvedCfg.URL == "" {
		return fmt.Errorf("no Jenkins server configured — set [jenkins] url, %s, or --url", config.EnvURL)
	}

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// CLI flags override config (highest priority).
	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", errorPrefix(), err)
	os.Exit(1)
}
