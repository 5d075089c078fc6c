package live

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/storefront-live/internal/model"
	"github.com/iliyamo/storefront-live/internal/push"
)

// StockChange is the payload of the stock event.
type StockChange struct {
	ProductID string    `mapstructure:"_id"`
	Name      string    `mapstructure:"name"`
	InStock   int       `mapstructure:"quantityInStock"`
	Version   uint64    `mapstructure:"version"`
	UpdatedAt time.Time `mapstructure:"updatedAt"`
}

// StockBoard tracks product stock levels by product id.
type StockBoard struct {
	view
	Store *Store[model.Product]
}

func NewStockBoard(src Source) (*StockBoard, error) {
	b := &StockBoard{view: newView(src, "stock"), Store: NewStore[model.Product]()}
	if err := on(b.view, push.EventProductStock, func(_ context.Context, c StockChange) {
		b.Apply(c)
	}); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Apply folds a stock change in. Changes without a product id are dropped;
// names are display only and never used to match.
func (b *StockBoard) Apply(c StockChange) MergeResult {
	if c.ProductID == "" {
		b.log.Warn("drop stock change without id", zap.String("name", c.Name))
		return Stale
	}
	p, ok := b.Store.Get(c.ProductID)
	if !ok {
		p = model.Product{ID: c.ProductID, Name: c.Name}
	}
	p.InStock = c.InStock
	if c.Name != "" {
		p.Name = c.Name
	}
	if c.Version == 0 && c.UpdatedAt.IsZero() {
		// unversioned: keep the held revision
		return b.Store.Replace(p)
	}
	if c.Version != 0 {
		p.Version = c.Version
	}
	if !c.UpdatedAt.IsZero() {
		p.UpdatedAt = c.UpdatedAt
	}
	return b.Store.Merge(p)
}

func (b *StockBoard) Products() []model.Product { return b.Store.Snapshot() }
