// Package config defines all configuration for the market-making agent.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via SPOTMM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	API       APIConfig       `mapstructure:"api"`
	Market    MarketConfig    `mapstructure:"market"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// WalletConfig holds the wallet used for signing venue requests.
// PrivateKey derives the signing address; the core never reads either from disk.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	ChainID    int    `mapstructure:"chain_id"`
}

// APIConfig holds the venue's transport endpoints.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	WSURL   string `mapstructure:"ws_url"`
}

// MarketConfig resolves the single pair this instance trades and its
// reference-data fallbacks.
//
//   - Market: trading pair symbol, e.g. "UBTC/USDC".
//   - PriceTick: price quantum, used if not available from venue reference data.
//   - SizeDecimals: max fractional digits in an order size.
type MarketConfig struct {
	Market       string  `mapstructure:"market"`
	PriceTick    float64 `mapstructure:"price_tick"`
	SizeDecimals int32   `mapstructure:"size_decimals"`
}

// StrategyConfig tunes the quoting, reconciliation, and inventory-skew behavior.
//
//   - OrderSizeUSD: target notional per quote, in quote units.
//   - Spread: base fractional offset each side from mid.
//   - CheckInterval: control-loop period.
//   - RepriceThreshold: relative drift beyond which an order is cancelled for replacement.
//   - MaxOrderAge: minimum age before expiry is considered.
//   - PriceExpiryThreshold: minimum price deviation required, in addition to age, for expiry.
//   - MaxBasePosition: saturation value for inventory skew.
//   - ExtraSellLevels: optional laddered-sell depth; 0 disables.
type StrategyConfig struct {
	OrderSizeUSD         float64       `mapstructure:"usd_order_size"`
	Spread               float64       `mapstructure:"spread"`
	CheckInterval        time.Duration `mapstructure:"check_interval"`
	RepriceThreshold     float64       `mapstructure:"reprice_threshold"`
	MaxOrderAge          time.Duration `mapstructure:"max_order_age"`
	PriceExpiryThreshold float64       `mapstructure:"price_expiry_threshold"`
	MaxBasePosition      float64       `mapstructure:"max_base_position"`
	ExtraSellLevels      int           `mapstructure:"extra_sell_levels"`
}

// SafetyConfig sets the crash detector and its cooldown.
//
//   - CrashThreshold: fractional drop within CrashWindow that trips the safety.
//   - CrashWindow: lookback span for the crash detector.
//   - CooldownAfterCrash: minimum quiet period after a trip.
//   - StaleFeedTimeout: seconds without a new ready mid sample before the
//     staleness trip fires.
type SafetyConfig struct {
	CrashThreshold     float64       `mapstructure:"crash_threshold"`
	CrashWindow        time.Duration `mapstructure:"crash_window"`
	CooldownAfterCrash time.Duration `mapstructure:"cooldown_after_crash"`
	StaleFeedTimeout   time.Duration `mapstructure:"stale_feed_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the read-only status server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: SPOTMM_PRIVATE_KEY, SPOTMM_DRY_RUN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SPOTMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env so they never need to live in the YAML file.
	if key := os.Getenv("SPOTMM_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if os.Getenv("SPOTMM_DRY_RUN") == "true" || os.Getenv("SPOTMM_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set SPOTMM_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.WSURL == "" {
		return fmt.Errorf("api.ws_url is required")
	}
	if c.Market.Market == "" {
		return fmt.Errorf("market.market is required")
	}
	if c.Market.PriceTick <= 0 {
		return fmt.Errorf("market.price_tick must be > 0")
	}
	if c.Market.SizeDecimals < 0 {
		return fmt.Errorf("market.size_decimals must be >= 0")
	}
	if c.Strategy.OrderSizeUSD <= 0 {
		return fmt.Errorf("strategy.usd_order_size must be > 0")
	}
	if c.Strategy.Spread <= 0 {
		return fmt.Errorf("strategy.spread must be > 0")
	}
	if c.Strategy.CheckInterval <= 0 {
		return fmt.Errorf("strategy.check_interval must be > 0")
	}
	if c.Strategy.MaxBasePosition <= 0 {
		return fmt.Errorf("strategy.max_base_position must be > 0")
	}
	if c.Strategy.ExtraSellLevels < 0 {
		return fmt.Errorf("strategy.extra_sell_levels must be >= 0")
	}
	if c.Safety.CrashThreshold <= 0 {
		return fmt.Errorf("safety.crash_threshold must be > 0")
	}
	if c.Safety.CrashWindow <= 0 {
		return fmt.Errorf("safety.crash_window must be > 0")
	}
	if c.Safety.CooldownAfterCrash <= 0 {
		return fmt.Errorf("safety.cooldown_after_crash must be > 0")
	}
	return nil
}
