package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal with "did you mean?" suggestions;
// silently ignoring a typo in a config file leads to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with defaults. Credentials can then come entirely from
// flags or environment, so a config file is never mandatory.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// CLI flags always win, matching user expectations for one-off overrides.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default.
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (defaults when no file exists).
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{
		URL:         cfg.Jenkins.URL,
		User:        cfg.Jenkins.User,
		Token:       cfg.Jenkins.Token,
		IgnoreCache: cfg.Builder.IgnoreCache,
		LogLevel:    cfg.Logging.LogLevel,
	}

	// 3. Environment overrides.
	if env.URL != "" {
		resolved.URL = env.URL
	}

	if env.User != "" {
		resolved.User = env.User
	}

	if env.Token != "" {
		resolved.Token = env.Token
	}

	// 4. CLI overrides (pointer field: nil = not specified).
	if cli.URL != "" {
		resolved.URL = cli.URL
	}

	if cli.User != "" {
		resolved.User = cli.User
	}

	if cli.Token != "" {
		resolved.Token = cli.Token
	}

	if cli.IgnoreCache != nil {
		resolved.IgnoreCache = *cli.IgnoreCache
	}

	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}
