// Package safety implements the crash and staleness trip that protects the
// agent from quoting through a price dislocation or a dead feed.
package safety

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"spotmm/internal/config"
	"spotmm/internal/exchange"
	"spotmm/internal/market"
	"spotmm/internal/strategy"
	"spotmm/pkg/types"
)

// Controller tracks last_crash_at and decides whether the Quoter's ensure
// step must stay quiet this tick. It has no mutex of its own: the control
// loop's Bot calls it only from the control-loop goroutine.
type Controller struct {
	cfg    config.SafetyConfig
	pair   types.Pair
	gw     exchange.Gateway
	logger *slog.Logger

	lastCrashAt time.Time
}

// NewController creates a Safety Controller for one trading pair.
func NewController(cfg config.SafetyConfig, pair types.Pair, gw exchange.Gateway, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		pair:   pair,
		gw:     gw,
		logger: logger.With("component", "safety"),
	}
}

// InCooldown reports whether now - last_crash_at < cooldown_after_crash.
func (c *Controller) InCooldown(now time.Time) bool {
	if c.lastCrashAt.IsZero() {
		return false
	}
	return now.Sub(c.lastCrashAt) < c.cfg.CooldownAfterCrash
}

// CheckCrash computes drop = (max(samples) - latest) / max(samples) and
// trips if it meets crash_threshold. It requires at least one sample.
func (c *Controller) CheckCrash(ctx context.Context, maxMid, latestMid decimal.Decimal, book *strategy.LocalBook, inv *strategy.Inventory, bestBid decimal.Decimal, haveBestBid bool, now time.Time) bool {
	if maxMid.IsZero() {
		return false
	}
	drop := maxMid.Sub(latestMid).Div(maxMid)
	threshold := decimal.NewFromFloat(c.cfg.CrashThreshold)
	if drop.LessThan(threshold) {
		return false
	}

	flattenPrice := latestMid
	if haveBestBid {
		flattenPrice = bestBid
	}
	c.trip(ctx, book, inv, flattenPrice, "crash", now)
	return true
}

// CheckStaleFeed trips the same response as a crash when the price feed has
// produced no new ready mid sample for longer than stale_feed_timeout. It
// fires on the absence of samples, independent of the crash-drop condition.
func (c *Controller) CheckStaleFeed(ctx context.Context, lastSampleAt time.Time, haveSample bool, book *strategy.LocalBook, inv *strategy.Inventory, bestBid decimal.Decimal, haveBestBid bool, now time.Time) bool {
	if !haveSample {
		return false
	}
	if now.Sub(lastSampleAt) < c.cfg.StaleFeedTimeout {
		return false
	}

	var flattenPrice decimal.Decimal
	if haveBestBid {
		flattenPrice = bestBid
	}
	c.trip(ctx, book, inv, flattenPrice, "stale feed", now)
	return true
}

// trip cancels every local order, flattens a long base balance via reduce-only
// IOC, and resets last_crash_at.
func (c *Controller) trip(ctx context.Context, book *strategy.LocalBook, inv *strategy.Inventory, flattenPrice decimal.Decimal, reason string, now time.Time) {
	c.logger.Warn("safety trip", "reason", reason)

	local := book.All()
	if len(local) > 0 {
		reqs := make([]types.BulkCancelRequest, len(local))
		for i, o := range local {
			reqs[i] = types.BulkCancelRequest{Coin: o.Coin, OrderID: o.OrderID}
		}
		if _, err := c.gw.BulkCancel(ctx, reqs); err != nil {
			c.logger.Error("safety trip: bulk cancel failed", "error", err)
		} else {
			for _, o := range local {
				book.Remove(o.OrderID)
			}
		}
	}

	if inv.BaseBalance.GreaterThan(decimal.Zero) && !flattenPrice.IsZero() {
		size := market.RoundSize(c.pair, inv.BaseBalance)
		if size.GreaterThan(decimal.Zero) {
			outcome, err := c.gw.Place(ctx, c.pair, types.Sell, flattenPrice, size, types.IOC, true)
			if err != nil {
				c.logger.Error("safety trip: flatten failed", "error", err)
			} else if outcome.Kind == types.PlaceFilled {
				// An IOC reduce-only flatten resolves immediately; the
				// reconciler never sees it (it was never resting), so the
				// ledger must be updated here or BaseBalance stays wrong
				// for the rest of the cooldown.
				inv.OnFill(types.Sell, outcome.FilledQty, outcome.FilledAvgPx)
			} else if outcome.Kind == types.PlaceRejected {
				c.logger.Error("safety trip: flatten rejected", "reason", outcome.RejectReason)
			}
		}
	}

	c.lastCrashAt = now
}

// LastCrashAt returns the last trip time, zero if never tripped.
func (c *Controller) LastCrashAt() time.Time {
	return c.lastCrashAt
}
