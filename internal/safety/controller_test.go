package safety

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spotmm/internal/config"
	"spotmm/internal/exchange"
	"spotmm/internal/strategy"
	"spotmm/pkg/types"
)

func testSafetyConfig() config.SafetyConfig {
	return config.SafetyConfig{
		CrashThreshold:     0.01,
		CrashWindow:        60 * time.Second,
		CooldownAfterCrash: 180 * time.Second,
		StaleFeedTimeout:   30 * time.Second,
	}
}

func testSafetyPair() types.Pair {
	return types.Pair{Symbol: "SPOT/USD", BaseCoin: "SPOT", SizeDecimals: 5, PriceTick: decimal.NewFromInt(1)}
}

func testSafetyLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSafetyGateway struct {
	cancelled []types.BulkCancelRequest
	placed    []types.Side
}

func (g *fakeSafetyGateway) Place(ctx context.Context, pair types.Pair, side types.Side, price, size decimal.Decimal, tif types.TimeInForce, reduceOnly bool) (types.PlaceOutcome, error) {
	g.placed = append(g.placed, side)
	return types.PlaceOutcome{Kind: types.PlaceFilled, FilledQty: size, FilledAvgPx: price}, nil
}

func (g *fakeSafetyGateway) Cancel(ctx context.Context, coin string, oid types.OrderID) (types.CancelOutcome, error) {
	return types.CancelOutcome{Kind: types.CancelOK}, nil
}

func (g *fakeSafetyGateway) BulkCancel(ctx context.Context, reqs []types.BulkCancelRequest) ([]types.BulkCancelResult, error) {
	g.cancelled = append(g.cancelled, reqs...)
	out := make([]types.BulkCancelResult, len(reqs))
	for i, r := range reqs {
		out[i] = types.BulkCancelResult{OrderID: r.OrderID, Outcome: types.CancelOutcome{Kind: types.CancelOK}}
	}
	return out, nil
}

func (g *fakeSafetyGateway) OpenOrders(ctx context.Context, address string) ([]types.VenueOpenOrder, error) {
	return nil, nil
}

func (g *fakeSafetyGateway) UserFills(ctx context.Context, address string) ([]types.Fill, error) {
	return nil, nil
}

var _ exchange.Gateway = (*fakeSafetyGateway)(nil)

func TestCheckCrashTripsOnLargeDrop(t *testing.T) {
	t.Parallel()
	gw := &fakeSafetyGateway{}
	c := NewController(testSafetyConfig(), testSafetyPair(), gw, testSafetyLogger())
	book := strategy.NewLocalBook()
	book.UpsertOnPlace(types.LocalOrder{OrderID: "o1", Side: types.Buy, Price: decimal.NewFromInt(100000), Size: decimal.NewFromFloat(0.001), OpenedAt: time.Now(), Coin: "SPOT"})
	inv := strategy.NewInventory(decimal.NewFromFloat(0.1))

	now := time.Now()
	tripped := c.CheckCrash(context.Background(), decimal.NewFromInt(100000), decimal.NewFromInt(98900), book, inv, decimal.Zero, false, now)

	if !tripped {
		t.Fatal("expected crash to trip on a 1.1% drop vs a 1% threshold")
	}
	if book.Len() != 0 {
		t.Error("expected all local orders to be cancelled")
	}
	if len(gw.cancelled) != 1 {
		t.Errorf("bulk cancel count = %d, want 1", len(gw.cancelled))
	}
	if !c.InCooldown(now.Add(time.Second)) {
		t.Error("expected cooldown to be active immediately after a trip")
	}
}

func TestCheckCrashDoesNotTripBelowThreshold(t *testing.T) {
	t.Parallel()
	gw := &fakeSafetyGateway{}
	c := NewController(testSafetyConfig(), testSafetyPair(), gw, testSafetyLogger())
	book := strategy.NewLocalBook()
	inv := strategy.NewInventory(decimal.NewFromFloat(0.1))

	tripped := c.CheckCrash(context.Background(), decimal.NewFromInt(100000), decimal.NewFromInt(99950), book, inv, decimal.Zero, false, time.Now())

	if tripped {
		t.Fatal("a 0.05% drop should not trip a 1% threshold")
	}
}

func TestCheckCrashFlattensLongPosition(t *testing.T) {
	t.Parallel()
	gw := &fakeSafetyGateway{}
	c := NewController(testSafetyConfig(), testSafetyPair(), gw, testSafetyLogger())
	book := strategy.NewLocalBook()
	inv := strategy.NewInventory(decimal.NewFromFloat(0.1))
	inv.OnFill(types.Buy, decimal.NewFromFloat(0.01), decimal.NewFromInt(100000))

	c.CheckCrash(context.Background(), decimal.NewFromInt(100000), decimal.NewFromInt(98000), book, inv, decimal.NewFromInt(97000), true, time.Now())

	if len(gw.placed) != 1 || gw.placed[0] != types.Sell {
		t.Fatalf("expected one reduce-only sell, got %+v", gw.placed)
	}
	if !inv.BaseBalance.IsZero() {
		t.Errorf("expected the flatten's immediate fill to zero out BaseBalance, got %s", inv.BaseBalance)
	}
}

func TestCheckCrashFlattenQuantizesSize(t *testing.T) {
	t.Parallel()
	gw := &fakeSafetyGateway{}
	c := NewController(testSafetyConfig(), testSafetyPair(), gw, testSafetyLogger())
	book := strategy.NewLocalBook()
	inv := strategy.NewInventory(decimal.NewFromFloat(1))
	// 7 fractional digits, two more than the pair's 5 size_decimals.
	inv.OnFill(types.Buy, decimal.NewFromFloat(0.0123456), decimal.NewFromInt(100000))

	c.CheckCrash(context.Background(), decimal.NewFromInt(100000), decimal.NewFromInt(98000), book, inv, decimal.NewFromInt(97000), true, time.Now())

	want := decimal.NewFromFloat(0.0123456).Sub(decimal.NewFromFloat(0.01234))
	if !inv.BaseBalance.Equal(want) {
		t.Errorf("BaseBalance = %s, want %s (flatten size truncated to 5 decimals)", inv.BaseBalance, want)
	}
}

func TestInCooldownFalseBeforeAnyTrip(t *testing.T) {
	t.Parallel()
	c := NewController(testSafetyConfig(), testSafetyPair(), &fakeSafetyGateway{}, testSafetyLogger())

	if c.InCooldown(time.Now()) {
		t.Error("should not be in cooldown before any trip")
	}
}

func TestCheckStaleFeedTripsOnAbsence(t *testing.T) {
	t.Parallel()
	gw := &fakeSafetyGateway{}
	c := NewController(testSafetyConfig(), testSafetyPair(), gw, testSafetyLogger())
	book := strategy.NewLocalBook()
	inv := strategy.NewInventory(decimal.NewFromFloat(0.1))

	lastSample := time.Now().Add(-time.Minute)
	tripped := c.CheckStaleFeed(context.Background(), lastSample, true, book, inv, decimal.Zero, false, time.Now())

	if !tripped {
		t.Fatal("expected staleness trip after exceeding stale_feed_timeout")
	}
}

func TestCheckStaleFeedDoesNotTripWithoutPriorSample(t *testing.T) {
	t.Parallel()
	c := NewController(testSafetyConfig(), testSafetyPair(), &fakeSafetyGateway{}, testSafetyLogger())
	book := strategy.NewLocalBook()
	inv := strategy.NewInventory(decimal.NewFromFloat(0.1))

	tripped := c.CheckStaleFeed(context.Background(), time.Time{}, false, book, inv, decimal.Zero, false, time.Now())

	if tripped {
		t.Error("staleness trip requires a prior sample to compare against")
	}
}
