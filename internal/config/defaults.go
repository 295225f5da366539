package config

// Default values, the layer-0 of the override chain.
const (
	defaultLogLevel = "info"
)

// DefaultConfig returns a Config populated with all default values. Used as
// the starting point for TOML decoding (so unset fields retain defaults)
// and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{LogLevel: defaultLogLevel},
	}
}
