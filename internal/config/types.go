package config

import (
	"time"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// Default values.
const (
	DefaultAPIBase        = "http://127.0.0.1:8000"
	DefaultTimeoutSeconds = 15
	DefaultLogDir         = "~/.tasktrack/logs"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultUserAgent      = "tasktrack"
)

// Config holds the full configuration for tasktrack.
type Config struct {
	// Backend
	APIBase        string `toml:"api_base"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	StrictSchema   bool   `toml:"strict_schema"`
	UserAgent      string `toml:"user_agent"`

	// Logging
	LogDir        string `toml:"log_dir"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Metrics listen address; empty disables the endpoint.
	MetricsAddr string `toml:"metrics_addr"`
}

// Timeout is the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were read, lowest priority first.
	Files []string
	// Unknown lists keys found in config files that tasktrack does not use.
	Unknown []string
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.APIBase = DefaultAPIBase
	cfg.TimeoutSeconds = DefaultTimeoutSeconds
	cfg.StrictSchema = false
	cfg.UserAgent = DefaultUserAgent
	cfg.LogDir = DefaultLogDir
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.LogTimestamps = false
	cfg.LogCaller = false
	cfg.MetricsAddr = ""
}

// Default returns a config holding only default values.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}
