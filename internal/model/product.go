package model

import "time"

// Product is the stock view of a catalog item. Name is display only; stock
// updates are matched on ID.
type Product struct {
	ID        string    `json:"_id" mapstructure:"_id"`
	Name      string    `json:"name" mapstructure:"name"`
	Category  string    `json:"category,omitempty" mapstructure:"category"`
	InStock   int       `json:"quantityInStock" mapstructure:"quantityInStock"`
	Price     float64   `json:"price" mapstructure:"price"`
	Discount  float64   `json:"discount,omitempty" mapstructure:"discount"`
	Likes     int       `json:"likes,omitempty" mapstructure:"likes"`
	Version   uint64    `json:"version,omitempty" mapstructure:"version"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" mapstructure:"updatedAt"`
}

func (p Product) Key() string        { return p.ID }
func (p Product) Revision() Revision { return Revision{Version: p.Version, UpdatedAt: p.UpdatedAt} }

// FinalPrice applies the percentage discount.
func (p Product) FinalPrice() float64 {
	if p.Discount <= 0 || p.Discount >= 100 {
		return p.Price
	}
	return p.Price * (100 - p.Discount) / 100
}
