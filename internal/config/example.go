package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# tasktrack configuration file
# Values can be overridden by TASKTRACK_* environment variables or CLI flags

# Task service base URL
api_base = "http://127.0.0.1:8000"

# Per-request timeout (seconds)
timeout_seconds = 15

# Validate every server payload against the task schema
strict_schema = false

# User-Agent header sent with each request
user_agent = "tasktrack"

# Session logs for the terminal UI (supports ~ expansion)
log_dir = "~/.tasktrack/logs"

# Logging: debug, info, warn, error
log_level = "info"
# text, json or logfmt
log_format = "text"
log_timestamps = false
log_caller = false

# Serve Prometheus metrics, e.g. "127.0.0.1:9464"
# metrics_addr = ""
`
}
