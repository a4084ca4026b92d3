package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 13*time.Second, cfg.Market.CallDelay)
	assert.Equal(t, 60*time.Second, cfg.Market.ThrottleBackoff)
	assert.Equal(t, 5, cfg.Market.InsiderCap)
	assert.Equal(t, 30, cfg.Market.WindowDays)
	assert.Len(t, cfg.Market.Symbols, 10)
	assert.Equal(t, "log", cfg.Mail.Provider)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
database:
  path: /tmp/digest.db
market:
  call_delay: 2s
  symbols: [AAPL, MSFT]
  alphavantage_key: from-file
job:
  workers: 3
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("ALPHAVANTAGE_API_KEY", "from-env")
	t.Setenv("PORT", "9000")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/digest.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Market.CallDelay)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Market.Symbols)
	assert.Equal(t, "from-env", cfg.Market.AlphaVantageKey)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Job.Workers)
	// Untouched sections keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Market.ThrottleBackoff)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"no database", func(c *config.Config) { c.Database.Path = "" }},
		{"bad base url", func(c *config.Config) { c.Server.BaseURL = "localhost" }},
		{"mailjet without keys", func(c *config.Config) { c.Mail.Provider = "mailjet" }},
		{"unknown provider", func(c *config.Config) { c.Mail.Provider = "carrier-pigeon" }},
		{"no symbols", func(c *config.Config) { c.Market.Symbols = nil }},
		{"zero workers", func(c *config.Config) { c.Job.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, config.Default().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
