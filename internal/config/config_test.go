package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, "http://localhost:8000/api", cfg.BaseURL())
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "@every 5m", cfg.WatchlistPoll)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coinfolio.yaml")
	yml := "api_url: https://sim.example.com/\ntimeout: 3s\ncurrency: EUR\ndashboard_port: 9090\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("COINFOLIO_CURRENCY", "AUD")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sim.example.com/api", cfg.BaseURL())
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "AUD", cfg.Currency, "env overrides yaml")
	assert.Equal(t, 9090, cfg.DashboardPort)
}

func TestLoad_BadEnvFallsBack(t *testing.T) {
	t.Setenv("DASHBOARD_PORT", "not-a-number")
	t.Setenv("COINFOLIO_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.DashboardPort)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"relative api url", func(c *Config) { c.APIURL = "localhost:8000" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"port out of range", func(c *Config) { c.DashboardPort = 70000 }},
		{"empty poll", func(c *Config) { c.WatchlistPoll = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Defaults().Validate())
}

func TestLoad_Credentials(t *testing.T) {
	t.Setenv("COINFOLIO_EMAIL", "ada@example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.HasCredentials())

	t.Setenv("COINFOLIO_PASSWORD", "Secret#1")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, "ada@example.com", cfg.Email)
}
