package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_SampleFile(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.StreamInterval)
	assert.Equal(t, "KRWQ-FRAX", cfg.Market.Pair)
	assert.Equal(t, 10*time.Second, cfg.Market.TickInterval)
	assert.Equal(t, 90*time.Second, cfg.Policy.PipelineTimeout)
	assert.Equal(t, 50, cfg.Policy.TradeMinConfidence)
	assert.Equal(t, 168*time.Hour, cfg.Storage.Retention)
	assert.InDelta(t, 0.2, cfg.Pipeline.Temperature, 1e-9)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Ledger.Capacity)
	assert.Equal(t, ":memory:", cfg.Storage.Path)
	assert.Equal(t, 15.0, cfg.Policy.MaxCommissionPct)
	assert.Equal(t, 30, cfg.Policy.SimMinQuality)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeYAML(t, `
server:
  addr: ":8080"
log:
  level: info
policy:
  trade_min_confidence: 60
`)
	t.Setenv("SENTINEL_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PIPELINE_API_KEY", "sk-test")
	t.Setenv("POLICY_PIPELINE_TIMEOUT", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sk-test", cfg.Pipeline.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Policy.PipelineTimeout)
	assert.Equal(t, 60, cfg.Policy.TradeMinConfidence, "YAML value kept when env is unset")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config.Load: read")

	_, err = Load(writeYAML(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "parse YAML")

	t.Setenv("LEDGER_CAPACITY", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		setDefaults(cfg)
		cfg.Pipeline.APIKey = "sk-test"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"dry run needs no key", func(c *Config) { c.Pipeline.APIKey = ""; c.Pipeline.DryRun = true }, ""},
		{"missing key", func(c *Config) { c.Pipeline.APIKey = "" }, "PIPELINE_API_KEY"},
		{"commission cap", func(c *Config) { c.Policy.MaxCommissionPct = 20 }, "max_commission_pct"},
		{"confidence range", func(c *Config) { c.Policy.TradeMinConfidence = 101 }, "thresholds"},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = 1 }, "telegram"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "invalid level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "invalid format"},
		{"temperature", func(c *Config) { c.Pipeline.Temperature = 3 }, "temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
