package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSideOpposite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		side Side
		want Side
	}{
		{Buy, Sell},
		{Sell, Buy},
	}

	for _, tt := range tests {
		if got := tt.side.Opposite(); got != tt.want {
			t.Errorf("Side(%q).Opposite() = %q, want %q", tt.side, got, tt.want)
		}
	}
}

func TestBBOSnapshotReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		snap BBOSnapshot
		want bool
	}{
		{"neither side seen", BBOSnapshot{}, false},
		{"only bid seen", BBOSnapshot{HasBid: true}, false},
		{"only ask seen", BBOSnapshot{HasAsk: true}, false},
		{"both seen", BBOSnapshot{HasBid: true, HasAsk: true}, true},
	}

	for _, tt := range tests {
		if got := tt.snap.Ready(); got != tt.want {
			t.Errorf("%s: Ready() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBBOSnapshotConsistent(t *testing.T) {
	t.Parallel()

	ready := BBOSnapshot{
		HasBid: true, HasAsk: true,
		BestBid: decimal.NewFromInt(100),
		BestAsk: decimal.NewFromInt(101),
	}
	if !ready.Consistent() {
		t.Error("bid <= ask should be consistent")
	}

	crossed := BBOSnapshot{
		HasBid: true, HasAsk: true,
		BestBid: decimal.NewFromInt(102),
		BestAsk: decimal.NewFromInt(101),
	}
	if crossed.Consistent() {
		t.Error("bid > ask should not be consistent")
	}

	notReady := BBOSnapshot{HasBid: true, BestBid: decimal.NewFromInt(100)}
	if notReady.Consistent() {
		t.Error("one-sided snapshot should not be consistent")
	}
}

func TestBBOSnapshotMid(t *testing.T) {
	t.Parallel()

	snap := BBOSnapshot{
		HasBid: true, HasAsk: true,
		BestBid:    decimal.NewFromInt(100000),
		BestAsk:    decimal.NewFromInt(100002),
		ObservedAt: time.Now(),
	}
	want := decimal.NewFromInt(100001)
	if got := snap.Mid(); !got.Equal(want) {
		t.Errorf("Mid() = %s, want %s", got, want)
	}
}
