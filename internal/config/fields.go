package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nibzard/tasktrack/internal/utils"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindBool
)

// field ties one config key to its env variable, flag and struct member.
type field struct {
	key   string
	env   string
	flag  string
	kind  fieldKind
	usage string
	str   func(*Config) *string
	num   func(*Config) *int
	flg   func(*Config) *bool
}

func fields() []field {
	return []field{
		{key: "api_base", env: "TASKTRACK_API_BASE", flag: "api-base", kind: kindString,
			usage: "Task service base URL", str: func(c *Config) *string { return &c.APIBase }},
		{key: "timeout_seconds", env: "TASKTRACK_TIMEOUT_SECONDS", flag: "timeout", kind: kindInt,
			usage: "Request timeout in seconds", num: func(c *Config) *int { return &c.TimeoutSeconds }},
		{key: "strict_schema", env: "TASKTRACK_STRICT_SCHEMA", flag: "strict-schema", kind: kindBool,
			usage: "Validate server payloads against the task schema", flg: func(c *Config) *bool { return &c.StrictSchema }},
		{key: "user_agent", env: "TASKTRACK_USER_AGENT", flag: "user-agent", kind: kindString,
			usage: "User-Agent header sent to the service", str: func(c *Config) *string { return &c.UserAgent }},
		{key: "log_dir", env: "TASKTRACK_LOG_DIR", flag: "log-dir", kind: kindString,
			usage: "Directory for session logs", str: func(c *Config) *string { return &c.LogDir }},
		{key: "log_level", env: "TASKTRACK_LOG_LEVEL", flag: "log-level", kind: kindString,
			usage: "Log level (debug|info|warn|error)", str: func(c *Config) *string { return &c.LogLevel }},
		{key: "log_format", env: "TASKTRACK_LOG_FORMAT", flag: "log-format", kind: kindString,
			usage: "Log format (text|json|logfmt)", str: func(c *Config) *string { return &c.LogFormat }},
		{key: "log_timestamps", env: "TASKTRACK_LOG_TIMESTAMPS", flag: "log-timestamps", kind: kindBool,
			usage: "Include timestamps in log lines", flg: func(c *Config) *bool { return &c.LogTimestamps }},
		{key: "log_caller", env: "TASKTRACK_LOG_CALLER", flag: "log-caller", kind: kindBool,
			usage: "Include caller location in log lines", flg: func(c *Config) *bool { return &c.LogCaller }},
		{key: "metrics_addr", env: "TASKTRACK_METRICS_ADDR", flag: "metrics-addr", kind: kindString,
			usage: "Serve Prometheus metrics on this address", str: func(c *Config) *string { return &c.MetricsAddr }},
	}
}

// Keys returns the configurable keys in display order.
func Keys() []string {
	fs := fields()
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.key
	}
	return keys
}

// set parses raw into the field's member.
func (f field) set(cfg *Config, raw string) error {
	switch f.kind {
	case kindInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", f.key, raw)
		}
		*f.num(cfg) = n
	case kindBool:
		*f.flg(cfg) = utils.BoolFromString(raw)
	default:
		*f.str(cfg) = raw
	}
	return nil
}

// get formats the field's current value.
func (f field) get(cfg *Config) string {
	switch f.kind {
	case kindInt:
		return strconv.Itoa(*f.num(cfg))
	case kindBool:
		return strconv.FormatBool(*f.flg(cfg))
	default:
		return *f.str(cfg)
	}
}

// Value returns the formatted value of key, and false for unknown keys.
func (c *Config) Value(key string) (string, bool) {
	for _, f := range fields() {
		if f.key == key {
			return f.get(c), true
		}
	}
	return "", false
}
