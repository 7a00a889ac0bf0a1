package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spikeycoins/tradeengine/currency"
)

const testYAML = `
http:
  bind_address: ":9090"
database:
  driver: postgres
  host: db.internal
  port: 5432
  username: trader
  database: tradeengine
pricing:
  index_cache_ttl: 15m
oracle:
  endpoint: https://metals.example.com/v1/spot
  poll_interval: 1m
markets:
  - pair: XAU-PERP
    max_leverage: 25
    maker_fee_rate: "0.0001"
logging:
  level: debug
`

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeTestConfig(t, testYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.BindAddress)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, uint16(5432), cfg.Database.Port)
	assert.Equal(t, 15*time.Minute, cfg.Pricing.IndexCacheTTL)
	assert.Equal(t, time.Minute, cfg.Oracle.PollInterval)
	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, "XAU-PERP", cfg.Markets[0].Pair)
	require.NoError(t, cfg.Validate())
}

func TestLoad_AppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeTestConfig(t, `
database:
  driver: sqlite3
  database: tradeengine.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.BindAddress)
	assert.Equal(t, 30*time.Minute, cfg.Pricing.IndexCacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Oracle.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Oracle.RequestTimeout)
}

func TestLoad_EnvOverridesBindAddress(t *testing.T) {
	path := writeTestConfig(t, testYAML)
	t.Setenv("TRADEENGINE_HTTP_BIND_ADDRESS", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.BindAddress)
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	cfg := &Config{
		HTTP:     HTTPConfig{BindAddress: ":8080"},
		Database: DatabaseConfig{Driver: "mysql", Database: "x"},
		Pricing:  PricingConfig{IndexCacheTTL: time.Minute},
		Oracle:   OracleConfig{PollInterval: time.Minute},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownMarketPair(t *testing.T) {
	cfg := &Config{
		HTTP:     HTTPConfig{BindAddress: ":8080"},
		Database: DatabaseConfig{Driver: "sqlite3", Database: "x"},
		Pricing:  PricingConfig{IndexCacheTTL: time.Minute},
		Oracle:   OracleConfig{PollInterval: time.Minute},
		Markets:  []MarketConfig{{Pair: "BTC-USD"}},
	}
	assert.Error(t, cfg.Validate())
}

func TestMarketOverrides_LayersOnDefaults(t *testing.T) {
	cfg := &Config{
		Markets: []MarketConfig{
			{Pair: "XAU-PERP", MaxLeverage: 25, MakerFeeRate: "0.0001"},
		},
	}
	overrides, err := cfg.MarketOverrides()
	require.NoError(t, err)

	p, ok := overrides[currency.XAUPERP]
	require.True(t, ok)
	assert.Equal(t, 25, p.MaxLeverage)
	assert.Equal(t, "0.00010000", p.MakerFeeRate.String())
	// TickSize was left unset in config, so it falls back to the
	// compiled-in default rather than a zero decimal.
	assert.Equal(t, "0.01000000", p.TickSize.String())
}

func TestMarketOverrides_RejectsUnknownPair(t *testing.T) {
	cfg := &Config{Markets: []MarketConfig{{Pair: "DOGE-PERP"}}}
	_, err := cfg.MarketOverrides()
	assert.Error(t, err)
}
