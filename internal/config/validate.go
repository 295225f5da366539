package config

import (
	"errors"
	"fmt"
	"net/url"
)

// validLogLevels are the accepted log_level values.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks raw config file values, accumulating every error rather
// than stopping at the first so users can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Jenkins.URL != "" {
		if err := validateURL(cfg.Jenkins.URL); err != nil {
			errs = append(errs, err)
		}
	}

	if lvl := cfg.Logging.LogLevel; lvl != "" && !validLogLevels[lvl] {
		errs = append(errs, fmt.Errorf("invalid log_level %q (debug, info, warn, error)", lvl))
	}

	return errors.Join(errs...)
}

// ValidateResolved checks the final merged result after the full override
// chain. An empty URL is allowed here; commands that contact a server
// enforce its presence themselves, so offline rendering needs no config.
func ValidateResolved(r *Resolved) error {
	var errs []error

	if r.URL != "" {
		if err := validateURL(r.URL); err != nil {
			errs = append(errs, err)
		}
	}

	if lvl := r.LogLevel; lvl != "" && !validLogLevels[lvl] {
		errs = append(errs, fmt.Errorf("invalid log_level %q (debug, info, warn, error)", lvl))
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid jenkins url %q: %w", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("jenkins url %q must use http or https", raw)
	}

	if u.Host == "" {
		return fmt.Errorf("jenkins url %q has no host", raw)
	}

	return nil
}
