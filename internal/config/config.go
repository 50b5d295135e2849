// Package config holds the shared configuration record for the crashbeacon
// pipeline. One *Config is built once and shared by pointer between the
// client, the event adapters, and the reporter; after build only the enabled
// flag may change.
package config

import (
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// DefaultBackendURL is the placeholder collector address used until a real
// backend is configured.
const DefaultBackendURL = "http://localhost:8080"

// ErrEmptyAPIKey is returned when a client is built without an API key.
var ErrEmptyAPIKey = errors.New("config: API key cannot be empty")

// Config captures the immutable-after-build settings plus the mutable
// enabled flag. The enabled flag is read on every fault and every
// error-level log event from arbitrary goroutines, so it is atomic rather
// than mutex-guarded; event buffering is never gated by it.
type Config struct {
	APIKey      string
	BackendURL  string
	Environment string
	Version     string

	// ReportOnLogErrors controls whether error-level log events trigger a
	// report on their own, outside any panic.
	ReportOnLogErrors bool

	enabled atomic.Bool
}

// New returns a Config with defaults applied: placeholder backend URL,
// report-on-log-errors on, reporting enabled.
func New(apiKey string) *Config {
	c := &Config{
		APIKey:            strings.TrimSpace(apiKey),
		BackendURL:        DefaultBackendURL,
		ReportOnLogErrors: true,
	}
	c.enabled.Store(true)
	return c
}

// Validate applies defaults and raises an error when required fields are
// missing. It runs exactly once, at build time.
func (c *Config) Validate() error {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" {
		return ErrEmptyAPIKey
	}
	if c.BackendURL == "" {
		c.BackendURL = DefaultBackendURL
	}
	return nil
}

// IngressURL is the full collector endpoint reports are posted to.
func (c *Config) IngressURL() string {
	return strings.TrimRight(c.BackendURL, "/") + "/ingress"
}

// Enabled reports whether fault and error-level reporting is active.
func (c *Config) Enabled() bool {
	return c.enabled.Load()
}

// SetEnabled flips the reporting gate. Safe to call from any goroutine at
// any time.
func (c *Config) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}
