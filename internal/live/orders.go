package live

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/push"
)

// OrderBoard is the live order list.
type OrderBoard struct {
	view
	Store *Store[model.Order]
}

func NewOrderBoard(src Source) (*OrderBoard, error) {
	b := &OrderBoard{view: newView(src, "orders"), Store: NewStore[model.Order]()}
	if err := on(b.view, push.EventNewOrder, func(_ context.Context, o model.Order) {
		b.Merge(o)
	}); err != nil {
		b.Close()
		return nil, err
	}
	for _, name := range []string{push.EventOrderStatusClient, push.EventOrderStatusUpdated} {
		if err := on(b.view, name, func(_ context.Context, c model.StatusChange) {
			b.ApplyStatus(c)
		}); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

// ApplyStatus folds a status change into the held order. Changes for orders
// the board does not hold are ignored; a status payload is not a full order.
func (b *OrderBoard) ApplyStatus(c model.StatusChange) MergeResult {
	ref := c.OrderID
	var (
		cur model.Order
		ok  bool
	)
	if ref != "" {
		cur, ok = b.Lookup(ref)
	}
	if !ok && c.Number != "" {
		// the server may name an order by id that the board holds by number
		ref = c.Number
		cur, ok = b.Lookup(ref)
	}
	if !ok {
		b.log.Debug("status for unknown order", zap.String("order", ref))
		return Stale
	}
	if !c.Status.Valid() {
		b.log.Warn("drop unknown status", zap.String("order", ref), zap.String("status", string(c.Status)))
		return Stale
	}
	next := c.Apply(cur)
	b.Store.Rekey(cur.Key(), next.Key())
	if !c.Versioned() {
		return b.Store.Replace(next)
	}
	return b.Store.Merge(next)
}

// Merge folds a full order in. A copy that carries the server id takes over
// the entry held under its order number.
func (b *OrderBoard) Merge(o model.Order) MergeResult {
	if o.ID == "" || o.Number == "" || !b.Store.Rekey("#"+o.Number, o.ID) {
		return b.Store.Merge(o)
	}
	res := b.Store.Merge(o)
	if res == Unchanged {
		// same revision: keep the held value but give it its id
		b.Store.Patch(o.ID, func(cur model.Order) model.Order {
			cur.ID = o.ID
			return cur
		})
	}
	return res
}

// MergeAll merges list in order and returns how many changed the board.
func (b *OrderBoard) MergeAll(list []model.Order) int {
	n := 0
	for _, o := range list {
		if b.Merge(o).Changed() {
			n++
		}
	}
	return n
}

// Lookup finds an order by server id or, failing that, by order number.
func (b *OrderBoard) Lookup(ref string) (model.Order, bool) {
	if o, ok := b.Store.Get(ref); ok {
		return o, true
	}
	return b.Store.Find(func(o model.Order) bool { return o.Number == ref })
}

func (b *OrderBoard) Orders() []model.Order { return b.Store.Snapshot() }
