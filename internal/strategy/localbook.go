package strategy

import (
	"github.com/shopspring/decimal"

	"spotmm/pkg/types"
)

// LocalBook is the control loop's own view of which orders it believes are
// resting. It has no internal mutex — the control loop's Bot mutates it
// only from the control-loop goroutine.
type LocalBook struct {
	orders map[types.OrderID]types.LocalOrder
}

// NewLocalBook creates an empty local order book.
func NewLocalBook() *LocalBook {
	return &LocalBook{orders: make(map[types.OrderID]types.LocalOrder)}
}

// UpsertOnPlace records a newly acknowledged resting order.
func (b *LocalBook) UpsertOnPlace(o types.LocalOrder) {
	b.orders[o.OrderID] = o
}

// ShrinkOnPartial reduces a local order's remembered size after a partial
// fill is observed by the Reconciler. The remembered size never increases.
func (b *LocalBook) ShrinkOnPartial(id types.OrderID, remaining decimal.Decimal) {
	o, ok := b.orders[id]
	if !ok {
		return
	}
	o.Size = remaining
	b.orders[id] = o
}

// Remove drops an order. Removing an unknown id is a no-op.
func (b *LocalBook) Remove(id types.OrderID) {
	delete(b.orders, id)
}

// Get returns the local order for id, if any.
func (b *LocalBook) Get(id types.OrderID) (types.LocalOrder, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// All returns every locally tracked order. Enumeration order is unspecified.
func (b *LocalBook) All() []types.LocalOrder {
	out := make([]types.LocalOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out
}

// IntersectWith drops any local entries whose id is absent from the given
// set of venue-known ids, clearing stale entries left by failed
// acknowledgements.
func (b *LocalBook) IntersectWith(knownIDs map[types.OrderID]struct{}) {
	for id := range b.orders {
		if _, ok := knownIDs[id]; !ok {
			delete(b.orders, id)
		}
	}
}

// Len reports how many orders are tracked.
func (b *LocalBook) Len() int {
	return len(b.orders)
}
