package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig = "JENKINS_JOBS_CONFIG"
	EnvURL    = "JENKINS_JOBS_URL"
	EnvUser   = "JENKINS_JOBS_USER"
	EnvToken  = "JENKINS_JOBS_TOKEN"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // JENKINS_JOBS_CONFIG: override config file path
	URL        string // JENKINS_JOBS_URL: server URL
	User       string // JENKINS_JOBS_USER: API user
	Token      string // JENKINS_JOBS_TOKEN: API token
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		URL:        os.Getenv(EnvURL),
		User:       os.Getenv(EnvUser),
		Token:      os.Getenv(EnvToken),
	}
}
