package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Env variable names recognised by the Loader. Individual variables override
// values from the optional YAML file.
const (
	EnvConfigFile        = "CRASHBEACON_CONFIG_FILE"
	EnvAPIKey            = "CRASHBEACON_API_KEY"
	EnvBackendURL        = "CRASHBEACON_BACKEND_URL"
	EnvEnvironment       = "CRASHBEACON_ENVIRONMENT"
	EnvVersion           = "CRASHBEACON_VERSION"
	EnvReportOnLogErrors = "CRASHBEACON_REPORT_ON_LOG_ERRORS"
	EnvEnabled           = "CRASHBEACON_ENABLED"
)

// Loader loads configuration from the environment and an optional YAML file.
// Tests can override Lookup and ReadFile to inject deterministic inputs.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// fileConfig mirrors the YAML document pointed to by CRASHBEACON_CONFIG_FILE.
type fileConfig struct {
	APIKey            string `yaml:"api_key"`
	BackendURL        string `yaml:"backend_url"`
	Environment       string `yaml:"environment"`
	Version           string `yaml:"version"`
	ReportOnLogErrors *bool  `yaml:"report_on_log_errors"`
	Enabled           *bool  `yaml:"enabled"`
}

// Load assembles a validated Config from the YAML file (when configured) and
// the CRASHBEACON_* environment overrides.
func (l Loader) Load() (*Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := New("")

	if path, ok := l.Lookup(EnvConfigFile); ok && strings.TrimSpace(path) != "" {
		if err := l.applyFile(strings.TrimSpace(path), cfg); err != nil {
			return nil, err
		}
	}

	overrideString(l.Lookup, EnvAPIKey, &cfg.APIKey)
	overrideString(l.Lookup, EnvBackendURL, &cfg.BackendURL)
	overrideString(l.Lookup, EnvEnvironment, &cfg.Environment)
	overrideString(l.Lookup, EnvVersion, &cfg.Version)

	if err := overrideBool(l.Lookup, EnvReportOnLogErrors, &cfg.ReportOnLogErrors); err != nil {
		return nil, err
	}
	enabled := cfg.Enabled()
	if err := overrideBool(l.Lookup, EnvEnabled, &enabled); err != nil {
		return nil, err
	}
	cfg.SetEnabled(enabled)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l Loader) applyFile(path string, cfg *Config) error {
	raw, err := l.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "config: reading %s", path)
	}

	var payload fileConfig
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return errors.Wrapf(err, "config: decoding %s", path)
	}

	if payload.APIKey != "" {
		cfg.APIKey = payload.APIKey
	}
	if payload.BackendURL != "" {
		cfg.BackendURL = payload.BackendURL
	}
	if payload.Environment != "" {
		cfg.Environment = payload.Environment
	}
	if payload.Version != "" {
		cfg.Version = payload.Version
	}
	if payload.ReportOnLogErrors != nil {
		cfg.ReportOnLogErrors = *payload.ReportOnLogErrors
	}
	if payload.Enabled != nil {
		cfg.SetEnabled(*payload.Enabled)
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return errors.Wrapf(err, "config: parsing %s", key)
	}
	*target = parsed
	return nil
}
