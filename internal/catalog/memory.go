package catalog

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository serves a fixed product list, typically loaded from the
// embedded seed JSON.
type MemoryRepository struct {
	products []Product
	byID     map[string]int
}

type productJSON struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// NewMemoryRepository builds a repository over the given products,
// preserving their order.
func NewMemoryRepository(products []Product) *MemoryRepository {
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}
	return &MemoryRepository{products: products, byID: byID}
}

// NewMemoryFromJSON parses a JSON array of product descriptors.
func NewMemoryFromJSON(data []byte) (*MemoryRepository, error) {
	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}

	products := make([]Product, len(raw))
	for i, p := range raw {
		products[i] = Product{ID: p.ID, Title: p.Title, Price: p.Price, Image: p.Image}
	}
	return NewMemoryRepository(products), nil
}

// List returns the products in catalog order.
func (r *MemoryRepository) List(_ context.Context) ([]Product, error) {
	out := make([]Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

// GetByID returns the product with the given id or ErrNotFound.
func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Product, error) {
	i, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := r.products[i]
	return &p, nil
}
