package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"spotmm/pkg/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOnFillBuyIncreasesBaseReducesQuote(t *testing.T) {
	t.Parallel()
	inv := NewInventory(dec("10"))

	inv.OnFill(types.Buy, dec("2"), dec("100"))

	if !inv.BaseBalance.Equal(dec("2")) {
		t.Errorf("BaseBalance = %s, want 2", inv.BaseBalance)
	}
	if !inv.QuoteBalance.Equal(dec("-200")) {
		t.Errorf("QuoteBalance = %s, want -200", inv.QuoteBalance)
	}
}

func TestOnFillSellDecreasesBaseIncreasesQuote(t *testing.T) {
	t.Parallel()
	inv := NewInventory(dec("10"))

	inv.OnFill(types.Sell, dec("3"), dec("50"))

	if !inv.BaseBalance.Equal(dec("-3")) {
		t.Errorf("BaseBalance = %s, want -3", inv.BaseBalance)
	}
	if !inv.QuoteBalance.Equal(dec("150")) {
		t.Errorf("QuoteBalance = %s, want 150", inv.QuoteBalance)
	}
}

func TestOnFillAccumulates(t *testing.T) {
	t.Parallel()
	inv := NewInventory(dec("10"))

	inv.OnFill(types.Buy, dec("2"), dec("100"))
	inv.OnFill(types.Sell, dec("1"), dec("110"))

	if !inv.BaseBalance.Equal(dec("1")) {
		t.Errorf("BaseBalance = %s, want 1", inv.BaseBalance)
	}
	if !inv.QuoteBalance.Equal(dec("-90")) {
		t.Errorf("QuoteBalance = %s, want -90", inv.QuoteBalance)
	}
}

func TestSkewZeroAtNoPosition(t *testing.T) {
	t.Parallel()
	inv := NewInventory(dec("10"))

	if !inv.Skew().IsZero() {
		t.Errorf("Skew() = %s, want 0", inv.Skew())
	}
}

func TestSkewPositiveWhenLong(t *testing.T) {
	t.Parallel()
	inv := NewInventory(dec("10"))
	inv.OnFill(types.Buy, dec("5"), dec("100"))

	if !inv.Skew().Equal(dec("0.5")) {
		t.Errorf("Skew() = %s, want 0.5", inv.Skew())
	}
}

func TestSkewClampsAtOne(t *testing.T) {
	t.Parallel()
	inv := NewInventory(dec("10"))
	inv.OnFill(types.Buy, dec("50"), dec("100"))

	if !inv.Skew().Equal(dec("1")) {
		t.Errorf("Skew() = %s, want 1 (clamped)", inv.Skew())
	}
}

func TestSkewClampsAtNegativeOne(t *testing.T) {
	t.Parallel()
	inv := NewInventory(dec("10"))
	inv.OnFill(types.Sell, dec("50"), dec("100"))

	if !inv.Skew().Equal(dec("-1")) {
		t.Errorf("Skew() = %s, want -1 (clamped)", inv.Skew())
	}
}
