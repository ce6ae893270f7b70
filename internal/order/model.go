package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Item is the read shape of an order line: the product fields are flattened
// into it so list responses stay flat. The subtotal is always derived from
// the current product price, never stored.
type Item struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.ProductPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemInput is the write shape: a product reference and a quantity. Prices
// are looked up server-side.
type ItemInput struct {
	ProductID int64
	Quantity  int
}

// Order is externally identified by OrderID; the surrogate key stays
// internal to the store.
type Order struct {
	ID        int64     `json:"-"`
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	Status    Status    `json:"status"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalPrice recomputes the order total from its items on every call so it
// can never drift from the source values.
func (o *Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Requester identifies who is asking. Non-staff requesters only ever see
// their own orders.
type Requester struct {
	UserID uuid.UUID
	Staff  bool
}
