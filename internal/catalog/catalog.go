// Package catalog exposes the read-only product source consumed by the
// checkout upsell selection.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product describes one catalog entry.
type Product struct {
	ID    string
	Title string
	Price decimal.Decimal
	Image string
}

// Repository defines read operations over the catalog. The engine never
// mutates catalog data.
type Repository interface {
	// List returns all products in catalog order.
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
