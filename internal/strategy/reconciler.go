package strategy

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"spotmm/pkg/types"
)

// FillEventKind distinguishes a partial fill from a terminal order.
type FillEventKind int

const (
	// FillPartial reports a local order whose remaining size shrank.
	FillPartial FillEventKind = iota
	// FillDone reports a local order that is no longer on the venue,
	// either fully filled or cancelled out-of-band.
	FillDone
)

// FillEvent is the Reconciler's report of an order-state transition.
type FillEvent struct {
	Kind      FillEventKind
	OrderID   types.OrderID
	Side      types.Side
	Price     decimal.Decimal
	FilledQty decimal.Decimal
}

// Reconciler diffs the venue's open-orders snapshot against the local order
// book and reports fills. It holds only the process-lifetime dedup set for
// user fills; it has no mutex of its own, matching LocalBook.
type Reconciler struct {
	baseCoin  string
	seenFills map[string]struct{}
	logger    *slog.Logger
}

// NewReconciler creates a Reconciler scoped to one pair's base-coin identifier.
func NewReconciler(baseCoin string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		baseCoin:  baseCoin,
		seenFills: make(map[string]struct{}),
		logger:    logger.With("component", "reconciler"),
	}
}

// Reconcile compares the venue snapshot R against the Local Order Book L,
// shrinking or removing entries in L and returning order-state transitions.
//
// An order absent from R is terminal, but §4.6 terminal covers two distinct
// causes: fully filled, or venue-cancelled out-of-band (e.g. by an
// administrative cancel-all run alongside this process). Only the first
// should ever move the Inventory Ledger (INV-3). freshFills is this same
// cycle's not-yet-seen user_fills, passed in so a terminal local order can be
// matched against an actual observed fill on its side before being reported
// as FillDone; a terminal order with no matching fill this cycle is treated
// as a bare cancel — removed locally, but not reported, so no replacement is
// placed and the ledger is untouched.
func (r *Reconciler) Reconcile(book *LocalBook, venueOrders []types.VenueOpenOrder, freshFills []types.Fill) []FillEvent {
	known := make(map[types.OrderID]types.VenueOpenOrder, len(venueOrders))
	for _, vo := range venueOrders {
		known[vo.OrderID] = vo
	}

	claimed := make([]bool, len(freshFills))

	var events []FillEvent
	for _, lo := range book.All() {
		vo, present := known[lo.OrderID]
		if !present {
			qty, price, ok := claimFill(freshFills, claimed, lo.Side)
			if !ok {
				r.logger.Info("order left venue book with no matching fill this cycle, treating as cancelled",
					"oid", lo.OrderID, "side", lo.Side)
				book.Remove(lo.OrderID)
				continue
			}
			events = append(events, FillEvent{
				Kind:      FillDone,
				OrderID:   lo.OrderID,
				Side:      lo.Side,
				Price:     price,
				FilledQty: qty,
			})
			book.Remove(lo.OrderID)
			continue
		}

		if vo.RemainingSize.LessThan(lo.Size) {
			filled := lo.Size.Sub(vo.RemainingSize)
			events = append(events, FillEvent{
				Kind:      FillPartial,
				OrderID:   lo.OrderID,
				Side:      lo.Side,
				Price:     lo.Price,
				FilledQty: filled,
			})
			book.ShrinkOnPartial(lo.OrderID, vo.RemainingSize)
		}
	}

	knownIDs := make(map[types.OrderID]struct{}, len(known))
	for id := range known {
		knownIDs[id] = struct{}{}
	}
	book.IntersectWith(knownIDs)

	return events
}

// claimFill picks the first not-yet-claimed fill on the given side, marking
// it claimed so the same fill cannot confirm two terminal orders. Fills carry
// no order id (§4.3's user_fills shape), so side is the only correlation
// available. When several orders on one side leave the venue book in the
// same cycle (e.g. a baseline sell and an extra-sell ladder level), fills
// are handed out in the local book's enumeration order, which need not
// match the order each was actually filled.
func claimFill(fills []types.Fill, claimed []bool, side types.Side) (qty, price decimal.Decimal, ok bool) {
	for i, f := range fills {
		if claimed[i] || f.Side != side {
			continue
		}
		claimed[i] = true
		return f.Size, f.Price, true
	}
	return decimal.Decimal{}, decimal.Decimal{}, false
}

// RecordFills deduplicates and filters fresh fills reported by user_fills,
// returning only those not seen before and matching this pair's base coin.
func (r *Reconciler) RecordFills(fills []types.Fill) []types.Fill {
	var fresh []types.Fill
	for _, f := range fills {
		if f.Coin != r.baseCoin {
			continue
		}
		if _, seen := r.seenFills[f.Hash]; seen {
			continue
		}
		r.seenFills[f.Hash] = struct{}{}
		fresh = append(fresh, f)
	}
	return fresh
}
