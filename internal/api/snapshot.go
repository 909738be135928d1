package api

import (
	"time"

	"spotmm/internal/config"
	"spotmm/internal/engine"
)

// MarketSnapshotProvider is the read-only view the status server needs from
// the running agent. engine.Bot satisfies this directly.
type MarketSnapshotProvider interface {
	Status() engine.Snapshot
}

// BuildSnapshot converts the engine's internal Snapshot into the dashboard's
// serializable StatusSnapshot.
func BuildSnapshot(provider MarketSnapshotProvider, cfg config.Config) StatusSnapshot {
	snap := provider.Status()

	orders := make([]OrderStatus, 0, len(snap.Orders))
	for _, o := range snap.Orders {
		orders = append(orders, OrderStatus{
			OrderID:  string(o.OrderID),
			Side:     string(o.Side),
			Price:    o.Price.String(),
			Size:     o.Size.String(),
			OpenedAt: o.OpenedAt,
		})
	}

	var lastCrashAt time.Time
	if !snap.LastCrashAt.IsZero() {
		lastCrashAt = snap.LastCrashAt
	}

	return StatusSnapshot{
		Timestamp:    time.Now(),
		Pair:         snap.Pair.Symbol,
		BestBid:      snap.BestBid.String(),
		BestAsk:      snap.BestAsk.String(),
		Mid:          snap.Mid.String(),
		MidReady:     snap.MidReady,
		ObservedAt:   snap.ObservedAt,
		Orders:       orders,
		BaseBalance:  snap.BaseBalance.String(),
		QuoteBalance: snap.QuoteBalance.String(),
		Skew:         snap.Skew.String(),
		InCooldown:   snap.InCooldown,
		LastCrashAt:  lastCrashAt,
		Config:       NewConfigSummary(cfg),
	}
}
