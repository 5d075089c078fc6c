package model

import "time"

// Order is the console's copy of a backend order. ID is the stable key;
// Number is the human-readable order number shown in toasts and links.
//
// Fields:
//
//	ID        – server id (_id).
//	Number    – order number, display only.
//	UserID    – customer who placed the order.
//	Status    – lifecycle status, see OrderStatus.
//	Address   – delivery address line.
//	Phone     – contact phone.
//	Items     – ordered lines.
//	Total     – total price.
//	Version   – server revision counter.
//	UpdatedAt – server modification time.
type Order struct {
	ID        string      `json:"_id" mapstructure:"_id"`
	Number    string      `json:"orderNumber" mapstructure:"orderNumber"`
	UserID    string      `json:"userId,omitempty" mapstructure:"userId"`
	UserName  string      `json:"userName,omitempty" mapstructure:"userName"`
	Status    OrderStatus `json:"status" mapstructure:"status"`
	Address   string      `json:"address,omitempty" mapstructure:"address"`
	Phone     string      `json:"phone,omitempty" mapstructure:"phone"`
	Items     []OrderItem `json:"items,omitempty" mapstructure:"items"`
	Total     float64     `json:"totalPrice" mapstructure:"totalPrice"`
	Version   uint64      `json:"version,omitempty" mapstructure:"version"`
	UpdatedAt time.Time   `json:"updatedAt,omitempty" mapstructure:"updatedAt"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string  `json:"productId" mapstructure:"productId"`
	Name      string  `json:"name" mapstructure:"name"`
	Quantity  int     `json:"quantity" mapstructure:"quantity"`
	Price     float64 `json:"price" mapstructure:"price"`
}

// Key falls back to the order number for payloads that omit the id.
func (o Order) Key() string {
	if o.ID != "" {
		return o.ID
	}
	return "#" + o.Number
}

func (o Order) Revision() Revision { return Revision{Version: o.Version, UpdatedAt: o.UpdatedAt} }

// StatusChange is the payload of the order status push events.
type StatusChange struct {
	OrderID   string      `json:"orderId" mapstructure:"orderId"`
	Number    string      `json:"orderNumber" mapstructure:"orderNumber"`
	UserID    string      `json:"userId,omitempty" mapstructure:"userId"`
	Status    OrderStatus `json:"status" mapstructure:"status"`
	Version   uint64      `json:"version,omitempty" mapstructure:"version"`
	UpdatedAt time.Time   `json:"updatedAt,omitempty" mapstructure:"updatedAt"`
}

// Versioned reports whether the change carries a revision of its own.
func (c StatusChange) Versioned() bool { return c.Version != 0 || !c.UpdatedAt.IsZero() }

// Apply returns o with the change folded in. The held revision is kept for
// the parts the change does not carry.
func (c StatusChange) Apply(o Order) Order {
	o.Status = c.Status
	if c.Version != 0 {
		o.Version = c.Version
	}
	if !c.UpdatedAt.IsZero() {
		o.UpdatedAt = c.UpdatedAt
	}
	if o.ID == "" {
		o.ID = c.OrderID
	}
	if o.Number == "" {
		o.Number = c.Number
	}
	if o.UserID == "" {
		o.UserID = c.UserID
	}
	return o
}
