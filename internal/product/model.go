package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InStock reports whether the product has units available.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// Info is the aggregate dashboard shape: the catalog, its size, and the
// highest price. Not backed by a single entity.
type Info struct {
	Products []Product       `json:"products"`
	Count    int             `json:"count"`
	MaxPrice decimal.Decimal `json:"max_price"`
}
