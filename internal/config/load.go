package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/nibzard/tasktrack/internal/logging"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file
// 3. Project config file
// 4. Environment variables
// 5. CLI flags (already parsed into fs; nil skips this step)
func Load(fs *pflag.FlagSet) (*Config, error) {
	cws, err := LoadWithSources(fs)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
func LoadWithSources(fs *pflag.FlagSet) (*ConfigWithSources, error) {
	cfg := Default()
	cws := &ConfigWithSources{
		Config:  cfg,
		Sources: make(map[string]ConfigSource),
	}
	for _, key := range Keys() {
		cws.Sources[key] = SourceDefault
	}

	if path := findUserConfigFile(); path != "" {
		if err := cws.loadFile(path, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", path, err)
		}
	}
	if path := findProjectConfigFile(); path != "" {
		if err := cws.loadFile(path, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg, cws.Sources); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := applyFlags(cfg, fs, cws.Sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	return cws, nil
}

// loadFile decodes path over the current config. Keys absent from the file
// keep their value and source.
func (cws *ConfigWithSources) loadFile(path string, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cws.Config)
	if err != nil {
		return err
	}
	for _, key := range Keys() {
		if md.IsDefined(key) {
			cws.Sources[key] = source
		}
	}
	for _, k := range md.Undecoded() {
		cws.Unknown = append(cws.Unknown, k.String())
	}
	sort.Strings(cws.Unknown)
	cws.Files = append(cws.Files, path)
	return nil
}

// finalizeConfig computes derived values and validates the result.
func finalizeConfig(cfg *Config) error {
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	return Validate(cfg)
}

// Validate checks values that would otherwise fail later in confusing ways.
func Validate(cfg *Config) error {
	u, err := url.Parse(cfg.APIBase)
	if err != nil {
		return fmt.Errorf("api_base: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base: %q must be an absolute http(s) URL", cfg.APIBase)
	}
	if cfg.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds: must be positive, got %d", cfg.TimeoutSeconds)
	}
	if !logging.ValidLevel(cfg.LogLevel) {
		return fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}
	if !logging.ValidFormat(cfg.LogFormat) {
		return fmt.Errorf("log_format: unknown format %q", cfg.LogFormat)
	}
	return nil
}

// ConfigFile returns the highest-priority config file that was read, or "".
func (cws *ConfigWithSources) ConfigFile() string {
	if len(cws.Files) == 0 {
		return ""
	}
	return cws.Files[len(cws.Files)-1]
}
