package api

import (
	"time"

	"spotmm/internal/config"
)

// StatusSnapshot is the dashboard's serializable view of the agent's state
// for one trading pair. Decimal fields are rendered as strings so the JSON
// encoding never loses precision the way float64 would.
type StatusSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Pair string `json:"pair"`

	BestBid    string    `json:"best_bid"`
	BestAsk    string    `json:"best_ask"`
	Mid        string    `json:"mid"`
	MidReady   bool      `json:"mid_ready"`
	ObservedAt time.Time `json:"observed_at"`

	Orders []OrderStatus `json:"orders"`

	BaseBalance  string `json:"base_balance"`
	QuoteBalance string `json:"quote_balance"`
	Skew         string `json:"skew"`

	InCooldown  bool      `json:"in_cooldown"`
	LastCrashAt time.Time `json:"last_crash_at,omitempty"`

	Config ConfigSummary `json:"config"`
}

// OrderStatus is one resting order as tracked by the local order book.
type OrderStatus struct {
	OrderID  string    `json:"order_id"`
	Side     string    `json:"side"`
	Price    string    `json:"price"`
	Size     string    `json:"size"`
	OpenedAt time.Time `json:"opened_at"`
}

// ConfigSummary is the subset of configuration worth exposing on the
// read-only status surface.
type ConfigSummary struct {
	Market           string  `json:"market"`
	Spread           float64 `json:"spread"`
	OrderSizeUSD     float64 `json:"order_size_usd"`
	MaxBasePosition  float64 `json:"max_base_position"`
	CheckInterval    string  `json:"check_interval"`
	CrashThreshold   float64 `json:"crash_threshold"`
	StaleFeedTimeout string  `json:"stale_feed_timeout"`
	DryRun           bool    `json:"dry_run"`
}

// NewConfigSummary builds a ConfigSummary from the instance's configuration.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		Market:           cfg.Market.Market,
		Spread:           cfg.Strategy.Spread,
		OrderSizeUSD:     cfg.Strategy.OrderSizeUSD,
		MaxBasePosition:  cfg.Strategy.MaxBasePosition,
		CheckInterval:    cfg.Strategy.CheckInterval.String(),
		CrashThreshold:   cfg.Safety.CrashThreshold,
		StaleFeedTimeout: cfg.Safety.StaleFeedTimeout.String(),
		DryRun:           cfg.DryRun,
	}
}
