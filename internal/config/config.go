// Package config implements TOML configuration loading, validation, and
// path resolution for jenkins-job-builder. It supports a four-layer override
// chain: defaults -> config file -> environment variables -> CLI flags.
package config

// Config is the top-level structure parsed from a TOML config file.
type Config struct {
	Jenkins JenkinsConfig `toml:"jenkins"`
	Builder BuilderConfig `toml:"builder"`
	Logging LoggingConfig `toml:"logging"`
}

// JenkinsConfig identifies and authenticates against one Jenkins server.
// Token is an API token, not the account password.
type JenkinsConfig struct {
	URL   string `toml:"url"`
	User  string `toml:"user"`
	Token string `toml:"token"`
}

// BuilderConfig controls reconciliation behavior.
type BuilderConfig struct {
	// IgnoreCache forces every entity upload regardless of fingerprint
	// cache state.
	IgnoreCache bool `toml:"ignore_cache"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. The pointer field distinguishes "not specified"
// (nil) from "explicitly set to false".
type CLIOverrides struct {
	ConfigPath  string // --config flag (empty = use default)
	URL         string // --url flag
	User        string // --user flag
	Token       string // --token flag
	IgnoreCache *bool  // --ignore-cache flag
}

// Resolved is the effective configuration after the full override chain.
type Resolved struct {
	URL         string
	User        string
	Token       string
	IgnoreCache bool
	LogLevel    string
}
