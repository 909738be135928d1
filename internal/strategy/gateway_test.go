package strategy

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"spotmm/pkg/types"
)

// fakeGateway is an in-memory exchange.Gateway for strategy tests.
type fakeGateway struct {
	nextID      int
	placeKind   types.PlaceOutcomeKind
	rejectMsg   string
	cancelKind  types.CancelOutcomeKind
	placedCalls []placedCall
	cancelCalls []types.OrderID
	placeErr    error
	cancelErr   error
}

type placedCall struct {
	Side  types.Side
	Price decimal.Decimal
	Size  decimal.Decimal
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{placeKind: types.PlaceResting, cancelKind: types.CancelOK}
}

func (g *fakeGateway) Place(ctx context.Context, pair types.Pair, side types.Side, price, size decimal.Decimal, tif types.TimeInForce, reduceOnly bool) (types.PlaceOutcome, error) {
	g.placedCalls = append(g.placedCalls, placedCall{Side: side, Price: price, Size: size})
	if g.placeErr != nil {
		return types.PlaceOutcome{}, g.placeErr
	}
	g.nextID++
	switch g.placeKind {
	case types.PlaceRejected:
		return types.PlaceOutcome{Kind: types.PlaceRejected, RejectReason: g.rejectMsg}, nil
	case types.PlaceFilled:
		return types.PlaceOutcome{Kind: types.PlaceFilled, FilledQty: size, FilledAvgPx: price}, nil
	default:
		return types.PlaceOutcome{Kind: types.PlaceResting, OrderID: types.OrderID(syntheticOID(g.nextID))}, nil
	}
}

func (g *fakeGateway) Cancel(ctx context.Context, coin string, oid types.OrderID) (types.CancelOutcome, error) {
	g.cancelCalls = append(g.cancelCalls, oid)
	if g.cancelErr != nil {
		return types.CancelOutcome{}, g.cancelErr
	}
	return types.CancelOutcome{Kind: g.cancelKind}, nil
}

func (g *fakeGateway) BulkCancel(ctx context.Context, reqs []types.BulkCancelRequest) ([]types.BulkCancelResult, error) {
	out := make([]types.BulkCancelResult, len(reqs))
	for i, r := range reqs {
		out[i] = types.BulkCancelResult{OrderID: r.OrderID, Outcome: types.CancelOutcome{Kind: types.CancelOK}}
	}
	return out, nil
}

func (g *fakeGateway) OpenOrders(ctx context.Context, address string) ([]types.VenueOpenOrder, error) {
	return nil, nil
}

func (g *fakeGateway) UserFills(ctx context.Context, address string) ([]types.Fill, error) {
	return nil, nil
}

func syntheticOID(n int) string {
	return "oid-" + strconv.Itoa(n)
}
