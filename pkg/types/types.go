// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bot — sides, prices and
// sizes, venue requests, and the tagged outcomes returned by the Gateway in
// place of exceptions. It has no dependencies on internal packages, so it
// can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: buy or sell.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side. Used when a terminally-filled order is
// replaced.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce controls whether an order rests on the book or is cancelled
// immediately if it cannot fill.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
)

// ————————————————————————————————————————————————————————————————————————
// Market metadata
// ————————————————————————————————————————————————————————————————————————

// Pair identifies a single base/quote market and its venue-side precisions.
// Immutable once resolved.
type Pair struct {
	Symbol       string // venue-side symbol, e.g. "UBTC/USDC"
	BaseCoin     string // base asset identifier used to match fills, e.g. "UBTC"
	SizeDecimals int32  // max fractional digits permitted in an order size
	PriceTick    decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Price feed
// ————————————————————————————————————————————————————————————————————————

// BBOSnapshot is the best-bid/best-offer state as last observed by the feed.
// HasBid/HasAsk are false until that side has been observed at least once.
type BBOSnapshot struct {
	BestBid    decimal.Decimal
	HasBid     bool
	BestAsk    decimal.Decimal
	HasAsk     bool
	ObservedAt time.Time
}

// Ready reports whether both sides of the book have been observed.
func (b BBOSnapshot) Ready() bool {
	return b.HasBid && b.HasAsk
}

// Consistent reports whether a ready snapshot is usable: bid must not cross
// ask. A transiently crossed snapshot (one side refreshed, the other stale)
// can occur across two independent updates; callers must skip it rather than
// quote against it.
func (b BBOSnapshot) Consistent() bool {
	return b.Ready() && !b.BestBid.GreaterThan(b.BestAsk)
}

// Mid returns the midpoint price. Callers must check Consistent first.
func (b BBOSnapshot) Mid() decimal.Decimal {
	return b.BestBid.Add(b.BestAsk).Div(decimal.NewFromInt(2))
}

// MidSample is one observation in the bounded crash-detection window.
type MidSample struct {
	At  time.Time
	Mid decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// OrderID is the venue-assigned identifier for a resting order.
type OrderID string

// LocalOrder is the agent's own belief about one of its resting orders.
// Created when a place is acknowledged as resting; mutated only on observed
// partial fill; destroyed when the venue no longer reports the id as open.
type LocalOrder struct {
	OrderID  OrderID
	Side     Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	OpenedAt time.Time
	Coin     string
}

// VenueOpenOrder is one entry from the venue's reported open-orders query.
type VenueOpenOrder struct {
	OrderID       OrderID
	Coin          string
	Side          Side
	Price         decimal.Decimal
	RemainingSize decimal.Decimal
	OpenedAt      time.Time
}

// Fill is one entry from the venue's reported user-fills query.
type Fill struct {
	Hash  string
	Coin  string
	Side  Side
	Size  decimal.Decimal
	Price decimal.Decimal
	Fee   decimal.Decimal
	At    time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Gateway tagged outcomes
//
// Each Gateway operation returns a result variant rather than raising an
// exception. Only the fields matching Kind are meaningful.
// ————————————————————————————————————————————————————————————————————————

// PlaceOutcomeKind tags which variant a PlaceOutcome carries.
type PlaceOutcomeKind int

const (
	PlaceResting PlaceOutcomeKind = iota
	PlaceFilled
	PlaceRejected
	PlaceTransport
)

// PlaceOutcome is the tagged result of a Gateway place call.
type PlaceOutcome struct {
	Kind PlaceOutcomeKind

	OrderID OrderID // PlaceResting

	FilledQty   decimal.Decimal // PlaceFilled
	FilledAvgPx decimal.Decimal // PlaceFilled

	RejectReason string // PlaceRejected

	Err error // PlaceTransport
}

// CancelOutcomeKind tags which variant a CancelOutcome carries.
type CancelOutcomeKind int

const (
	CancelOK CancelOutcomeKind = iota
	CancelUnknown
	CancelTransport
)

// CancelOutcome is the tagged result of a Gateway cancel call.
type CancelOutcome struct {
	Kind CancelOutcomeKind
	Err  error // CancelTransport
}

// BulkCancelRequest names one order to cancel within a bulk_cancel call.
type BulkCancelRequest struct {
	Coin    string
	OrderID OrderID
}

// BulkCancelResult pairs a requested order id with its outcome.
type BulkCancelResult struct {
	OrderID OrderID
	Outcome CancelOutcome
}
