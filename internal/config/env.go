package config

import (
	"fmt"
	"os"
)

// loadFromEnv overrides config from TASKTRACK_* environment variables.
// Empty variables are ignored.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) error {
	for _, f := range fields() {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		if err := f.set(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", f.env, err)
		}
		sources[f.key] = SourceEnv
	}
	return nil
}
