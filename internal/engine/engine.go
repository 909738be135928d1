// Package engine wires the price feed, local order book, inventory ledger,
// quoter, reconciler, and safety controller into a single running agent: one
// Bot value owned by the control loop, with the BBO feed's callback holding
// the same handle and acquiring the bot's single exclusion region. There are
// no package-level singletons.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"spotmm/internal/config"
	"spotmm/internal/exchange"
	"spotmm/internal/market"
	"spotmm/internal/safety"
	"spotmm/internal/strategy"
	"spotmm/pkg/types"
)

// ErrFatal marks a condition the agent cannot continue past. New wraps
// market.ErrUnknownPair with it; the control loop does not detect state
// divergence mid-run and never returns it.
var ErrFatal = errors.New("engine: fatal")

// Snapshot is a read-only, point-in-time copy of the Bot's state for the
// status endpoint. It is published by the control loop after every tick via
// an atomic pointer swap, so the status handlers never contend with the
// control loop's mutex.
type Snapshot struct {
	Pair types.Pair

	BestBid, BestAsk decimal.Decimal
	HasBid, HasAsk   bool
	Mid              decimal.Decimal
	MidReady         bool
	ObservedAt       time.Time

	Orders []types.LocalOrder

	BaseBalance  decimal.Decimal
	QuoteBalance decimal.Decimal
	Skew         decimal.Decimal

	InCooldown  bool
	LastCrashAt time.Time

	Now time.Time
}

// Bot is the control loop. It is the sole owner of the local order book,
// inventory ledger, and safety controller; the price feed is the one piece
// of state also written by the BBO feed's callback goroutine, guarded by mu.
type Bot struct {
	cfg     config.Config
	pair    types.Pair
	gw      exchange.Gateway
	address string

	feed       *market.Feed
	book       *strategy.LocalBook
	inventory  *strategy.Inventory
	quoter     *strategy.Quoter
	reconciler *strategy.Reconciler
	safetyCtl  *safety.Controller
	bboFeed    *exchange.BBOFeed

	// mu protects feed: best_bid, best_ask, and the mid-price sample
	// sequence. The BBO feed's callback holds it only long enough to fold in
	// one update; the control loop holds it for the same short read at the
	// top of each tick.
	mu sync.Mutex

	status atomic.Pointer[Snapshot]

	onFillLogged func(types.Fill)
	onSnapshot   func()

	logger *slog.Logger
}

// New resolves the configured pair against ref and wires the feed, book,
// inventory, quoter, reconciler, and safety controller into a Bot. It fails
// fast with an error wrapping both ErrFatal and market.ErrUnknownPair if the
// pair is not present in the venue's reference data — the caller must not
// subscribe to any feed or start the control loop on error.
func New(cfg config.Config, gw exchange.Gateway, ref market.ReferenceData, address string, logger *slog.Logger) (*Bot, error) {
	pair, err := market.Resolve(cfg.Market, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}

	inv := strategy.NewInventory(decimal.NewFromFloat(cfg.Strategy.MaxBasePosition))

	bot := &Bot{
		cfg:        cfg,
		pair:       pair,
		gw:         gw,
		address:    address,
		feed:       market.NewFeed(pair, cfg.Safety.CrashWindow),
		book:       strategy.NewLocalBook(),
		inventory:  inv,
		quoter:     strategy.NewQuoter(cfg.Strategy, pair, gw, inv, logger),
		reconciler: strategy.NewReconciler(pair.BaseCoin, logger),
		safetyCtl:  safety.NewController(cfg.Safety, pair, gw, logger),
		logger:     logger.With("component", "engine", "pair", pair.Symbol),
	}
	bot.bboFeed = exchange.NewBBOFeed(cfg.API.WSURL, pair.BaseCoin, bot.handleBBOUpdate, logger)
	bot.publishStatus(time.Now())

	return bot, nil
}

// SetFillLogCallback installs a hook invoked once per deduplicated fill.
// Used by cmd/bot to emit dashboard fill events; optional.
func (b *Bot) SetFillLogCallback(fn func(types.Fill)) {
	b.onFillLogged = fn
}

// SetSnapshotCallback installs a hook invoked once per published Snapshot
// (every tick). Used by cmd/bot to push live updates to dashboard viewers
// instead of only sending one at connect time; optional.
func (b *Bot) SetSnapshotCallback(fn func()) {
	b.onSnapshot = fn
}

// Pair returns the resolved trading pair.
func (b *Bot) Pair() types.Pair {
	return b.pair
}

// Status returns the most recently published Snapshot. Safe to call from any
// goroutine; never blocks on the control loop.
func (b *Bot) Status() Snapshot {
	if s := b.status.Load(); s != nil {
		return *s
	}
	return Snapshot{Pair: b.pair}
}

// handleBBOUpdate folds one inbound BBO update into the feed under mu. It
// runs on the BBO feed's read goroutine and must return quickly — it only
// updates price state, never the order book or inventory.
func (b *Bot) handleBBOUpdate(update exchange.BBOUpdate) {
	b.mu.Lock()
	firstReady := b.feed.ApplyUpdate(update.Bid, update.Ask, update.At)
	b.mu.Unlock()

	if firstReady {
		b.logger.Info("first BBO observed")
	}
}

// Run starts the BBO feed transport and the control loop. It blocks until
// ctx is cancelled or the feed exits, and otherwise repeats forever.
func (b *Bot) Run(ctx context.Context) error {
	feedDone := make(chan error, 1)
	go func() { feedDone <- b.bboFeed.Run(ctx) }()

	ticker := time.NewTicker(b.cfg.Strategy.CheckInterval)
	defer ticker.Stop()

	b.logger.Info("control loop started",
		"check_interval", b.cfg.Strategy.CheckInterval,
		"spread", b.cfg.Strategy.Spread,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-feedDone:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("engine: bbo feed exited: %w", err)
		case now := <-ticker.C:
			if err := b.tick(ctx, now); err != nil {
				return err
			}
		}
	}
}

// tick runs one control-loop cycle: expire → reprice → ensure → crash-check,
// then reconcile. mu is held only to read the feed at the top of the tick and
// to clear its samples after a trip; the phases themselves run without mu,
// since the local order book, inventory, and safety state are touched only
// from the control-loop goroutine. No Gateway call is made while mu is held.
func (b *Bot) tick(ctx context.Context, now time.Time) error {
	b.mu.Lock()
	snap := b.feed.Snapshot
	maxMid, haveMax := b.feed.MaxMid()
	latestMid, haveLatest := b.feed.LatestMid()
	lastSampleAt, haveSample := b.feed.LastSampleAt()
	b.mu.Unlock()

	if !snap.Consistent() {
		b.logger.Debug("skipping tick: BBO not ready or crossed")
		b.publishStatus(now)
		return nil
	}
	mid := snap.Mid()

	b.quoter.CancelExpired(ctx, b.book, mid, now)
	b.quoter.Reprice(ctx, b.book, mid)

	coolingDown := b.safetyCtl.InCooldown(now)
	b.quoter.Ensure(ctx, b.book, b.inventory.Skew(), mid, coolingDown)

	var tripped bool
	if haveMax && haveLatest {
		tripped = b.safetyCtl.CheckCrash(ctx, maxMid, latestMid, b.book, b.inventory, snap.BestBid, snap.HasBid, now)
	}
	if !tripped {
		tripped = b.safetyCtl.CheckStaleFeed(ctx, lastSampleAt, haveSample, b.book, b.inventory, snap.BestBid, snap.HasBid, now)
	}
	if tripped {
		b.mu.Lock()
		b.feed.ResetSamples()
		b.mu.Unlock()
	}

	b.reconcile(ctx, mid)
	b.publishStatus(now)
	return nil
}

// reconcile diffs the local order book against the venue's open-orders
// snapshot and records fresh fills from user_fills. It is called without mu
// held so slow network I/O never blocks the BBO feed's price updates — the
// local order book and inventory ledger are otherwise untouched by any other
// goroutine, so no additional locking is required for their mutation here.
func (b *Bot) reconcile(ctx context.Context, mid decimal.Decimal) {
	// user_fills is fetched before open_orders so the Reconciler can confirm
	// a terminal local order (one that vanished from open_orders) against an
	// actual fill observed this same cycle, rather than assuming every
	// disappearance was a fill (see strategy.Reconciler.Reconcile).
	fills, fillsErr := b.gw.UserFills(ctx, b.address)
	var freshFills []types.Fill
	if fillsErr != nil {
		b.logger.Warn("user fills: transport error", "err_kind", "Transport", "error", fillsErr)
	} else {
		freshFills = b.reconciler.RecordFills(fills)
	}

	venueOrders, err := b.gw.OpenOrders(ctx, b.address)
	if err != nil {
		b.logger.Warn("reconcile: transport error, skipping this cycle", "err_kind", "Transport", "error", err)
	} else {
		events := b.reconciler.Reconcile(b.book, venueOrders, freshFills)
		for _, ev := range events {
			b.inventory.OnFill(ev.Side, ev.FilledQty, ev.Price)
			skew := b.inventory.Skew()
			b.quoter.ReplaceOpposite(ctx, b.book, ev.Side, ev.FilledQty, skew, mid)
			b.logger.Info("fill observed",
				"oid", ev.OrderID, "side", ev.Side, "qty", ev.FilledQty, "price", ev.Price,
				"terminal", ev.Kind == strategy.FillDone)
		}
	}

	for _, f := range freshFills {
		b.logger.Info("fill logged", "hash", f.Hash, "side", f.Side, "size", f.Size, "price", f.Price)
		if b.onFillLogged != nil {
			b.onFillLogged(f)
		}
	}
}

// publishStatus snapshots current state for the read-only status surface.
func (b *Bot) publishStatus(now time.Time) {
	b.mu.Lock()
	snap := b.feed.Snapshot
	b.mu.Unlock()

	orders := b.book.All()
	ordersCopy := make([]types.LocalOrder, len(orders))
	copy(ordersCopy, orders)

	s := &Snapshot{
		Pair:         b.pair,
		BestBid:      snap.BestBid,
		BestAsk:      snap.BestAsk,
		HasBid:       snap.HasBid,
		HasAsk:       snap.HasAsk,
		MidReady:     snap.Consistent(),
		ObservedAt:   snap.ObservedAt,
		Orders:       ordersCopy,
		BaseBalance:  b.inventory.BaseBalance,
		QuoteBalance: b.inventory.QuoteBalance,
		Skew:         b.inventory.Skew(),
		InCooldown:   b.safetyCtl.InCooldown(now),
		LastCrashAt:  b.safetyCtl.LastCrashAt(),
		Now:          now,
	}
	if s.MidReady {
		s.Mid = snap.Mid()
	}
	b.status.Store(s)

	if b.onSnapshot != nil {
		b.onSnapshot()
	}
}
