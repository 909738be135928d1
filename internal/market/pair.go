// Package market resolves trading-pair reference data and tracks the venue's
// best-bid/best-offer stream.
package market

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"spotmm/internal/config"
	"spotmm/pkg/types"
)

// ErrUnknownPair is returned when the configured market symbol is not present
// in the venue's reference data. Startup must terminate before subscribing to
// any feed or placing any order.
var ErrUnknownPair = errors.New("market: unknown pair")

// ReferenceData is the subset of venue reference data needed to resolve a
// pair. A real Gateway implementation fetches this from the venue's metadata
// endpoint; tests can supply a canned map.
type ReferenceData interface {
	// Lookup returns the base-coin identifier and price tick for a symbol,
	// or ok=false if the venue does not know the symbol.
	Lookup(symbol string) (baseCoin string, priceTick decimal.Decimal, ok bool)
}

// StaticReferenceData is a ReferenceData backed by the instance's own config,
// used when the venue does not expose a separate metadata lookup and the
// operator supplies the price tick directly.
type StaticReferenceData struct {
	Symbol    string
	PriceTick decimal.Decimal
}

// Lookup implements ReferenceData.
func (s StaticReferenceData) Lookup(symbol string) (string, decimal.Decimal, bool) {
	if symbol != s.Symbol {
		return "", decimal.Decimal{}, false
	}
	base, _, found := strings.Cut(symbol, "/")
	if !found {
		return "", decimal.Decimal{}, false
	}
	return base, s.PriceTick, true
}

// Resolve builds a Pair from the configured market symbol, consulting ref
// for the base-coin identifier and price tick. Fails fast with ErrUnknownPair
// if the symbol is absent.
func Resolve(cfg config.MarketConfig, ref ReferenceData) (types.Pair, error) {
	baseCoin, tick, ok := ref.Lookup(cfg.Market)
	if !ok {
		return types.Pair{}, fmt.Errorf("%w: %s", ErrUnknownPair, cfg.Market)
	}
	if tick.IsZero() && cfg.PriceTick > 0 {
		tick = decimal.NewFromFloat(cfg.PriceTick)
	}
	if tick.IsZero() {
		return types.Pair{}, fmt.Errorf("market: no price tick available for %s", cfg.Market)
	}
	return types.Pair{
		Symbol:       cfg.Market,
		BaseCoin:     baseCoin,
		SizeDecimals: cfg.SizeDecimals,
		PriceTick:    tick,
	}, nil
}

// RoundPrice rounds raw to the nearest price tick. Ties round toward the
// nearer tick using standard half-up rounding on the tick-scaled value; the
// rule need only be stable, which decimal.Decimal's RoundBank-free division
// and rounding provides.
func RoundPrice(pair types.Pair, raw decimal.Decimal) decimal.Decimal {
	if pair.PriceTick.IsZero() {
		return raw
	}
	ticks := raw.DivRound(pair.PriceTick, 8).Round(0)
	return ticks.Mul(pair.PriceTick)
}

// RoundSize truncates raw to the pair's size_decimals, matching the venue's
// requirement that order sizes never be rounded up past what the agent
// intends to risk.
func RoundSize(pair types.Pair, raw decimal.Decimal) decimal.Decimal {
	return raw.Truncate(pair.SizeDecimals)
}
