package market

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"spotmm/internal/config"
	"spotmm/pkg/types"
)

func testPair() types.Pair {
	return types.Pair{
		Symbol:       "UBTC/USDC",
		BaseCoin:     "UBTC",
		SizeDecimals: 5,
		PriceTick:    decimal.NewFromInt(1),
	}
}

func TestResolveKnownPair(t *testing.T) {
	t.Parallel()

	ref := StaticReferenceData{Symbol: "UBTC/USDC", PriceTick: decimal.NewFromInt(1)}
	cfg := config.MarketConfig{Market: "UBTC/USDC", SizeDecimals: 5}

	pair, err := Resolve(cfg, ref)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if pair.BaseCoin != "UBTC" {
		t.Errorf("BaseCoin = %q, want UBTC", pair.BaseCoin)
	}
	if !pair.PriceTick.Equal(decimal.NewFromInt(1)) {
		t.Errorf("PriceTick = %s, want 1", pair.PriceTick)
	}
}

func TestResolveUnknownPairFailsFast(t *testing.T) {
	t.Parallel()

	ref := StaticReferenceData{Symbol: "UBTC/USDC", PriceTick: decimal.NewFromInt(1)}
	cfg := config.MarketConfig{Market: "XYZ/QUOTE", SizeDecimals: 5}

	_, err := Resolve(cfg, ref)
	if !errors.Is(err, ErrUnknownPair) {
		t.Errorf("Resolve() error = %v, want ErrUnknownPair", err)
	}
}

func TestRoundPrice(t *testing.T) {
	t.Parallel()

	pair := testPair()
	tests := []struct {
		raw  string
		want string
	}{
		{"99960.9996", "99961"},
		{"100041.0004", "100041"},
		{"100000", "100000"},
	}

	for _, tt := range tests {
		raw, _ := decimal.NewFromString(tt.raw)
		want, _ := decimal.NewFromString(tt.want)
		if got := RoundPrice(pair, raw); !got.Equal(want) {
			t.Errorf("RoundPrice(%s) = %s, want %s", tt.raw, got, want)
		}
	}
}

func TestRoundSizeTruncates(t *testing.T) {
	t.Parallel()

	pair := testPair()
	raw, _ := decimal.NewFromString("0.0010006789")
	want, _ := decimal.NewFromString("0.00100")

	got := RoundSize(pair, raw)
	if !got.Equal(want) {
		t.Errorf("RoundSize(%s) = %s, want %s", raw, got, want)
	}
}
