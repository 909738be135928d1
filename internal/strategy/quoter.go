package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"spotmm/internal/config"
	"spotmm/internal/exchange"
	"spotmm/internal/market"
	"spotmm/pkg/types"
)

// Quoter runs the cancel-expired / reprice / ensure quoting cycle. It owns
// no state of its own beyond the extra-sell ladder bookkeeping; the local
// order book and inventory it reads and mutates belong to the Bot, which
// calls it only from the control-loop goroutine and without holding its
// mutex.
type Quoter struct {
	cfg    config.StrategyConfig
	pair   types.Pair
	gw     exchange.Gateway
	inv    *Inventory
	logger *slog.Logger

	seededStartup bool
	sellRefPrice  decimal.Decimal
	haveSellRef   bool
	extraSellsAt  []decimal.Decimal // placed extra-sell levels, lowest k first
}

// NewQuoter creates a Quoter for one trading pair. inv is the same Inventory
// the control loop owns: a place that comes back immediately filled updates
// it directly, rather than waiting for the reconciler to observe the fill.
func NewQuoter(cfg config.StrategyConfig, pair types.Pair, gw exchange.Gateway, inv *Inventory, logger *slog.Logger) *Quoter {
	return &Quoter{
		cfg:    cfg,
		pair:   pair,
		gw:     gw,
		inv:    inv,
		logger: logger.With("component", "quoter"),
	}
}

// CancelExpired cancels local orders whose age exceeds max_order_age AND
// whose price deviation from mid exceeds price_expiry_threshold.
func (q *Quoter) CancelExpired(ctx context.Context, book *LocalBook, mid decimal.Decimal, now time.Time) {
	for _, o := range book.All() {
		age := now.Sub(o.OpenedAt)
		if age <= q.cfg.MaxOrderAge {
			continue
		}
		dev := mid.Sub(o.Price).Abs()
		threshold := decimal.NewFromFloat(q.cfg.PriceExpiryThreshold)
		if dev.LessThanOrEqual(threshold) {
			continue
		}

		outcome, err := q.gw.Cancel(ctx, o.Coin, o.OrderID)
		if err != nil {
			q.logger.Warn("cancel expired: transport error", "oid", o.OrderID, "error", err)
			continue
		}
		if outcome.Kind == types.CancelOK || outcome.Kind == types.CancelUnknown {
			book.Remove(o.OrderID)
		}
	}
}

// Reprice cancels local orders whose relative drift from mid exceeds
// reprice_threshold. Replacement happens in Ensure.
func (q *Quoter) Reprice(ctx context.Context, book *LocalBook, mid decimal.Decimal) {
	threshold := decimal.NewFromFloat(q.cfg.RepriceThreshold)
	for _, o := range book.All() {
		if o.Price.IsZero() {
			continue
		}
		drift := mid.Sub(o.Price).Abs().Div(o.Price)
		if drift.LessThanOrEqual(threshold) {
			continue
		}

		outcome, err := q.gw.Cancel(ctx, o.Coin, o.OrderID)
		if err != nil {
			q.logger.Warn("reprice: transport error", "oid", o.OrderID, "error", err)
			continue
		}
		if outcome.Kind == types.CancelOK || outcome.Kind == types.CancelUnknown {
			book.Remove(o.OrderID)
		}
	}
}

// Ensure places a missing buy and/or sell side, skew-adjusted, and maintains
// the extra-sell ladder. coolingDown suppresses all new placements;
// expiry and reprice are unaffected by it.
func (q *Quoter) Ensure(ctx context.Context, book *LocalBook, skew decimal.Decimal, mid decimal.Decimal, coolingDown bool) {
	if coolingDown {
		return
	}

	if !q.seededStartup {
		q.placeStartupSeed(ctx, book, mid)
		q.seededStartup = true
		return
	}

	one := decimal.NewFromInt(1)
	spread := decimal.NewFromFloat(q.cfg.Spread)
	buySpread := spread.Mul(one.Add(skew))
	sellSpread := spread.Mul(one.Sub(skew))

	hasBuy, hasSell := sideOccupancy(book)

	if !hasBuy {
		price := market.RoundPrice(q.pair, mid.Mul(one.Sub(buySpread)))
		q.place(ctx, book, types.Buy, price)
	}
	if !hasSell {
		price := market.RoundPrice(q.pair, mid.Mul(one.Add(sellSpread)))
		if q.place(ctx, book, types.Sell, price) {
			q.sellRefPrice = price
			q.haveSellRef = true
			q.extraSellsAt = nil
		}
	} else if !q.haveSellRef {
		// A sell survived from a previous cycle (e.g. one placed by
		// ReplaceOpposite); adopt its price as the ladder reference so extra
		// levels can be computed.
		for _, o := range book.All() {
			if o.Side == types.Sell {
				q.sellRefPrice = o.Price
				q.haveSellRef = true
				break
			}
		}
	}

	if !hasSell && !q.haveSellRef {
		q.extraSellsAt = nil
	}

	q.maintainExtraSells(ctx, book, mid, spread)
}

func (q *Quoter) placeStartupSeed(ctx context.Context, book *LocalBook, mid decimal.Decimal) {
	const epsilon = 0.0001
	price := market.RoundPrice(q.pair, mid.Mul(decimal.NewFromFloat(1 - epsilon)))
	q.place(ctx, book, types.Buy, price)
}

func (q *Quoter) maintainExtraSells(ctx context.Context, book *LocalBook, mid, spread decimal.Decimal) {
	if q.cfg.ExtraSellLevels <= 0 || !q.haveSellRef {
		return
	}

	two := decimal.NewFromInt(2)
	for k := len(q.extraSellsAt); k < q.cfg.ExtraSellLevels; k++ {
		kPlus1 := decimal.NewFromInt(int64(k + 1))
		trigger := kPlus1.Mul(two).Mul(spread).Mul(mid)
		if q.sellRefPrice.Sub(mid).LessThan(trigger) {
			break
		}
		price := market.RoundPrice(q.pair, q.sellRefPrice.Add(trigger))
		if !q.place(ctx, book, types.Sell, price) {
			break
		}
		q.extraSellsAt = append(q.extraSellsAt, price)
	}
}

// place quantizes size, skips sub-minimum-notional sizes, and submits a GTC
// order, recording it in the Local Order Book on success.
func (q *Quoter) place(ctx context.Context, book *LocalBook, side types.Side, price decimal.Decimal) bool {
	if price.LessThanOrEqual(decimal.Zero) {
		return false
	}
	rawSize := decimal.NewFromFloat(q.cfg.OrderSizeUSD).Div(price)
	size := market.RoundSize(q.pair, rawSize)
	if size.LessThanOrEqual(decimal.Zero) {
		q.logger.Debug("skipping sub-minimum-notional quote", "side", side, "price", price)
		return false
	}

	outcome, err := q.gw.Place(ctx, q.pair, side, price, size, types.GTC, false)
	if err != nil {
		q.logger.Warn("place: transport error", "side", side, "error", err)
		return false
	}

	switch outcome.Kind {
	case types.PlaceResting:
		book.UpsertOnPlace(types.LocalOrder{
			OrderID:  outcome.OrderID,
			Side:     side,
			Price:    price,
			Size:     size,
			OpenedAt: time.Now(),
			Coin:     q.pair.BaseCoin,
		})
		return true
	case types.PlaceFilled:
		q.inv.OnFill(side, outcome.FilledQty, outcome.FilledAvgPx)
		return true
	case types.PlaceRejected:
		q.logger.Warn("place rejected", "side", side, "price", price, "reason", outcome.RejectReason)
		return false
	default:
		q.logger.Warn("place: unrecognized outcome", "side", side)
		return false
	}
}

// ReplaceOpposite places a replacement order on the opposite side at the
// current mid and spreads, in response to a fill. It is the control loop's
// hook for Reconciler FillDone/FillPartial events: the filled side re-enters
// Absent and Ensure will re-place it.
func (q *Quoter) ReplaceOpposite(ctx context.Context, book *LocalBook, filledSide types.Side, qty, skew, mid decimal.Decimal) bool {
	one := decimal.NewFromInt(1)
	spread := decimal.NewFromFloat(q.cfg.Spread)

	opposite := filledSide.Opposite()
	var price decimal.Decimal
	if opposite == types.Buy {
		buySpread := spread.Mul(one.Add(skew))
		price = market.RoundPrice(q.pair, mid.Mul(one.Sub(buySpread)))
	} else {
		sellSpread := spread.Mul(one.Sub(skew))
		price = market.RoundPrice(q.pair, mid.Mul(one.Add(sellSpread)))
	}

	size := market.RoundSize(q.pair, qty)
	if size.LessThanOrEqual(decimal.Zero) {
		return false
	}

	outcome, err := q.gw.Place(ctx, q.pair, opposite, price, size, types.GTC, false)
	if err != nil {
		q.logger.Warn("replace opposite: transport error", "side", opposite, "error", err)
		return false
	}
	if outcome.Kind == types.PlaceFilled {
		q.inv.OnFill(opposite, outcome.FilledQty, outcome.FilledAvgPx)
		return true
	}
	if outcome.Kind != types.PlaceResting {
		return false
	}

	book.UpsertOnPlace(types.LocalOrder{
		OrderID:  outcome.OrderID,
		Side:     opposite,
		Price:    price,
		Size:     size,
		OpenedAt: time.Now(),
		Coin:     q.pair.BaseCoin,
	})
	return true
}

func sideOccupancy(book *LocalBook) (hasBuy, hasSell bool) {
	for _, o := range book.All() {
		switch o.Side {
		case types.Buy:
			hasBuy = true
		case types.Sell:
			hasSell = true
		}
	}
	return
}

