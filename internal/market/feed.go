package market

import (
	"time"

	"github.com/shopspring/decimal"

	"spotmm/pkg/types"
)

// Feed tracks the best-bid/best-offer state and bounded mid-price history for
// a single pair. It is a plain value with no internal locking: all reads and
// writes happen while the engine holds its single mutex, so Feed itself stays
// simple and testable without synchronization of its own.
type Feed struct {
	Pair        types.Pair
	Snapshot    types.BBOSnapshot
	Samples     []types.MidSample
	CrashWindow time.Duration

	readySeen bool
}

// NewFeed creates a Feed for pair with the given crash-detection window.
func NewFeed(pair types.Pair, crashWindow time.Duration) *Feed {
	return &Feed{Pair: pair, CrashWindow: crashWindow}
}

// ApplyUpdate folds one inbound BBO update into the feed state.
// bid and/or ask may be nil if this update only refreshed one side. Returns
// true exactly once, on the tick where the snapshot first becomes ready —
// the "first BBO" event the engine logs. The Quoter tracks its startup seed
// separately and does not read this value.
func (f *Feed) ApplyUpdate(bid, ask *decimal.Decimal, now time.Time) (firstReady bool) {
	if bid != nil {
		f.Snapshot.BestBid = *bid
		f.Snapshot.HasBid = true
	}
	if ask != nil {
		f.Snapshot.BestAsk = *ask
		f.Snapshot.HasAsk = true
	}
	f.Snapshot.ObservedAt = now

	if !f.Snapshot.Ready() {
		return false
	}

	f.Samples = append(f.Samples, types.MidSample{At: now, Mid: f.Snapshot.Mid()})
	f.evict(now)

	if !f.readySeen {
		f.readySeen = true
		return true
	}
	return false
}

// evict drops samples older than CrashWindow, keeping the sequence's span
// bounded as required by the Mid-Price Sample invariant.
func (f *Feed) evict(now time.Time) {
	cutoff := now.Add(-f.CrashWindow)
	i := 0
	for ; i < len(f.Samples); i++ {
		if !f.Samples[i].At.Before(cutoff) {
			break
		}
	}
	f.Samples = f.Samples[i:]
}

// MaxMid returns the maximum sampled mid in the current window.
func (f *Feed) MaxMid() (decimal.Decimal, bool) {
	if len(f.Samples) == 0 {
		return decimal.Decimal{}, false
	}
	max := f.Samples[0].Mid
	for _, s := range f.Samples[1:] {
		if s.Mid.GreaterThan(max) {
			max = s.Mid
		}
	}
	return max, true
}

// LatestMid returns the most recently sampled mid.
func (f *Feed) LatestMid() (decimal.Decimal, bool) {
	if len(f.Samples) == 0 {
		return decimal.Decimal{}, false
	}
	return f.Samples[len(f.Samples)-1].Mid, true
}

// LastSampleAt returns the timestamp of the most recent sample, used by the
// safety controller's staleness trip.
func (f *Feed) LastSampleAt() (time.Time, bool) {
	if len(f.Samples) == 0 {
		return time.Time{}, false
	}
	return f.Samples[len(f.Samples)-1].At, true
}

// ResetSamples clears the mid-price sample sequence. Called by the engine's
// control loop after a safety trip, so the drop ratio doesn't recompute
// against stale pre-trip highs.
func (f *Feed) ResetSamples() {
	f.Samples = nil
}
