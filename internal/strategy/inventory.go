package strategy

import (
	"github.com/shopspring/decimal"

	"spotmm/pkg/types"
)

// Inventory is the running base/quote balance ledger. It has no internal
// mutex: the control loop's Bot is the sole owner and mutates it only from
// the control-loop goroutine.
type Inventory struct {
	BaseBalance  decimal.Decimal
	QuoteBalance decimal.Decimal

	maxBasePosition decimal.Decimal
}

// NewInventory creates an empty ledger bounded by maxBasePosition, used to
// derive Skew.
func NewInventory(maxBasePosition decimal.Decimal) *Inventory {
	return &Inventory{
		BaseBalance:     decimal.Zero,
		QuoteBalance:    decimal.Zero,
		maxBasePosition: maxBasePosition,
	}
}

// OnFill applies an observed fill to the ledger.
func (inv *Inventory) OnFill(side types.Side, qty, price decimal.Decimal) {
	notional := qty.Mul(price)
	if side == types.Buy {
		inv.BaseBalance = inv.BaseBalance.Add(qty)
		inv.QuoteBalance = inv.QuoteBalance.Sub(notional)
		return
	}
	inv.BaseBalance = inv.BaseBalance.Sub(qty)
	inv.QuoteBalance = inv.QuoteBalance.Add(notional)
}

// Skew returns clamp(base_balance / max_base_position, -1, +1), the signal
// that drives the Quoter's per-side spread widening.
func (inv *Inventory) Skew() decimal.Decimal {
	if inv.maxBasePosition.IsZero() {
		return decimal.Zero
	}
	ratio := inv.BaseBalance.Div(inv.maxBasePosition)
	one := decimal.NewFromInt(1)
	if ratio.GreaterThan(one) {
		return one
	}
	negOne := decimal.NewFromInt(-1)
	if ratio.LessThan(negOne) {
		return negOne
	}
	return ratio
}
