package config

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	cfg := New("  key-123  ")

	assert.Equal(t, "key-123", cfg.APIKey)
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.True(t, cfg.ReportOnLogErrors)
	assert.True(t, cfg.Enabled())
}

func TestValidateRejectsEmptyAPIKey(t *testing.T) {
	for _, key := range []string{"", "   ", "\t\n"} {
		cfg := New(key)
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyAPIKey))
	}
}

func TestValidateRestoresBackendDefault(t *testing.T) {
	cfg := New("key")
	cfg.BackendURL = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
}

func TestIngressURL(t *testing.T) {
	cfg := New("key")
	cfg.BackendURL = "https://crashes.example.com"
	assert.Equal(t, "https://crashes.example.com/ingress", cfg.IngressURL())

	cfg.BackendURL = "https://crashes.example.com/"
	assert.Equal(t, "https://crashes.example.com/ingress", cfg.IngressURL())
}

func TestSetEnabled(t *testing.T) {
	cfg := New("key")
	require.True(t, cfg.Enabled())

	cfg.SetEnabled(false)
	assert.False(t, cfg.Enabled())

	cfg.SetEnabled(true)
	assert.True(t, cfg.Enabled())
}
