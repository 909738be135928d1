package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"spotmm/pkg/types"
)

// Gateway is the thin, blocking request/response façade over the venue's
// order/cancel/query/fill operations. Every operation returns a tagged
// result variant rather than raising an exception; only transport failures
// are returned as a Go error.
//
// Suspension points: every method may block the calling goroutine for up to
// the Gateway's configured timeout. The Gateway itself never retries —
// retry policy belongs to the caller's next control-loop tick.
type Gateway interface {
	// Place submits a quantized limit order. On a successful round trip the
	// result is PlaceResting, PlaceFilled, or PlaceRejected, or PlaceTransport
	// when the venue's reply carries no recognized status; a non-nil error
	// means the call itself failed transport-wise.
	Place(ctx context.Context, pair types.Pair, side types.Side, price, size decimal.Decimal, tif types.TimeInForce, reduceOnly bool) (types.PlaceOutcome, error)

	// Cancel cancels a single resting order by id.
	Cancel(ctx context.Context, coin string, oid types.OrderID) (types.CancelOutcome, error)

	// BulkCancel cancels a list of orders in one round trip, returning a
	// per-id outcome for each.
	BulkCancel(ctx context.Context, reqs []types.BulkCancelRequest) ([]types.BulkCancelResult, error)

	// OpenOrders returns the venue's current view of the account's resting
	// orders.
	OpenOrders(ctx context.Context, address string) ([]types.VenueOpenOrder, error)

	// UserFills returns the account's historical fills.
	UserFills(ctx context.Context, address string) ([]types.Fill, error)
}
