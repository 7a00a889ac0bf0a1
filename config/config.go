// Package config loads process configuration from a YAML file via
// Viper, with a handful of sensitive or deployment-specific fields
// overridable through environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spikeycoins/tradeengine/currency"
	"github.com/spikeycoins/tradeengine/database"
	"github.com/spikeycoins/tradeengine/database/drivers"
	"github.com/spikeycoins/tradeengine/exchange/market"
	"github.com/spikeycoins/tradeengine/money"
)

// Config is the top-level process configuration. Maps directly to the
// YAML file structure.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Markets  []MarketConfig `mapstructure:"markets"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HTTPConfig controls the JSON transport's listener.
type HTTPConfig struct {
	BindAddress string `mapstructure:"bind_address"`
}

// DatabaseConfig selects and configures the SQL backend. Driver is
// either "postgres" or "sqlite3"; for sqlite3 only Database (a file
// path, or ":memory:") is meaningful.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     uint16 `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ToDatabaseConfig adapts c into the database package's own Config
// shape.
func (c DatabaseConfig) ToDatabaseConfig() *database.Config {
	return &database.Config{
		Enabled: true,
		Driver:  database.Driver(c.Driver),
		ConnectionDetails: drivers.ConnectionDetails{
			Host:     c.Host,
			Port:     c.Port,
			Username: c.Username,
			Password: c.Password,
			Database: c.Database,
			SSLMode:  c.SSLMode,
		},
	}
}

// PricingConfig tunes the mark-price and index-price cache.
type PricingConfig struct {
	IndexCacheTTL time.Duration `mapstructure:"index_cache_ttl"`
}

// OracleConfig points at the external metals price provider.
type OracleConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MarketConfig overrides one pair's static trading parameters. Fields
// left at the zero value (an empty string, or MaxLeverage 0) keep the
// market.Defaults value for that pair when the override is built; only
// the fields that are set replace the default.
type MarketConfig struct {
	Pair                  string `mapstructure:"pair"`
	TickSize              string `mapstructure:"tick_size"`
	MinQuantity           string `mapstructure:"min_quantity"`
	MakerFeeRate          string `mapstructure:"maker_fee_rate"`
	TakerFeeRate          string `mapstructure:"taker_fee_rate"`
	ContractSize          string `mapstructure:"contract_size"`
	MaxLeverage           int    `mapstructure:"max_leverage"`
	InitialMarginRate     string `mapstructure:"initial_margin_rate"`
	MaintenanceMarginRate string `mapstructure:"maintenance_margin_rate"`
}

// LoggingConfig controls the sub-logger's verbosity.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads config from a YAML file at path, then applies any
// TRADEENGINE_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADEENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dsn := os.Getenv("TRADEENGINE_DATABASE_PASSWORD"); dsn != "" {
		cfg.Database.Password = dsn
	}
	if addr := os.Getenv("TRADEENGINE_HTTP_BIND_ADDRESS"); addr != "" {
		cfg.HTTP.BindAddress = addr
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.bind_address", ":8080")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.database", "tradeengine.db")
	v.SetDefault("pricing.index_cache_ttl", 30*time.Minute)
	v.SetDefault("oracle.poll_interval", 30*time.Minute)
	v.SetDefault("oracle.request_timeout", 5*time.Second)
	v.SetDefault("logging.level", "info")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.HTTP.BindAddress == "" {
		return fmt.Errorf("http.bind_address is required")
	}
	switch database.Driver(c.Database.Driver) {
	case database.DBPostgreSQL, database.DBSQLite3, database.DBSQLite:
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite3, got %q", c.Database.Driver)
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if c.Pricing.IndexCacheTTL <= 0 {
		return fmt.Errorf("pricing.index_cache_ttl must be > 0")
	}
	if c.Oracle.PollInterval <= 0 {
		return fmt.Errorf("oracle.poll_interval must be > 0")
	}
	for _, m := range c.Markets {
		if _, ok := currency.ParsePair(m.Pair); !ok {
			return fmt.Errorf("markets: unrecognized pair %q", m.Pair)
		}
	}
	return nil
}

// MarketOverrides parses c.Markets into the map market.NewTable
// expects, layering each override on top of market.Defaults for its
// pair so unset string fields fall back to the shipped default rather
// than a zero decimal.
func (c *Config) MarketOverrides() (map[currency.Pair]market.Params, error) {
	out := make(map[currency.Pair]market.Params, len(c.Markets))
	for _, m := range c.Markets {
		pair, ok := currency.ParsePair(m.Pair)
		if !ok {
			return nil, fmt.Errorf("markets: unrecognized pair %q", m.Pair)
		}
		params := market.Defaults[pair]
		params.Pair = pair
		if err := applyDecimalOverride(&params.TickSize, m.TickSize); err != nil {
			return nil, fmt.Errorf("markets[%s].tick_size: %w", m.Pair, err)
		}
		if err := applyDecimalOverride(&params.MinQuantity, m.MinQuantity); err != nil {
			return nil, fmt.Errorf("markets[%s].min_quantity: %w", m.Pair, err)
		}
		if err := applyDecimalOverride(&params.MakerFeeRate, m.MakerFeeRate); err != nil {
			return nil, fmt.Errorf("markets[%s].maker_fee_rate: %w", m.Pair, err)
		}
		if err := applyDecimalOverride(&params.TakerFeeRate, m.TakerFeeRate); err != nil {
			return nil, fmt.Errorf("markets[%s].taker_fee_rate: %w", m.Pair, err)
		}
		if err := applyDecimalOverride(&params.ContractSize, m.ContractSize); err != nil {
			return nil, fmt.Errorf("markets[%s].contract_size: %w", m.Pair, err)
		}
		if err := applyDecimalOverride(&params.InitialMarginRate, m.InitialMarginRate); err != nil {
			return nil, fmt.Errorf("markets[%s].initial_margin_rate: %w", m.Pair, err)
		}
		if err := applyDecimalOverride(&params.MaintenanceMarginRate, m.MaintenanceMarginRate); err != nil {
			return nil, fmt.Errorf("markets[%s].maintenance_margin_rate: %w", m.Pair, err)
		}
		if m.MaxLeverage != 0 {
			params.MaxLeverage = m.MaxLeverage
		}
		out[pair] = params
	}
	return out, nil
}

func applyDecimalOverride(dst *money.Decimal, s string) error {
	if s == "" {
		return nil
	}
	d, err := money.NewFromString(s)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
