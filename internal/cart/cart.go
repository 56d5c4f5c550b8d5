// Package cart implements the authoritative in-memory cart state machine.
//
// A Store holds the ordered line list for one shopper, keeps the derived
// line count in sync, and writes through to durable storage after every
// committed mutation. Persistence is fail-soft: a broken backend degrades
// durability, never interactivity.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/shopkit/checkout/internal/identity"
)

// Line is one product entry in a cart. At most one Line per ID exists in a
// given cart; adding the same product again merges into the existing line.
type Line struct {
	ID       string
	Title    string
	Image    string
	Price    decimal.Decimal
	Quantity int
}

// Persistence is the storage port consumed by the Store. Implementations
// must be fail-soft: Read returns nil when the partition is absent,
// unreadable, or corrupt; Write and Delete swallow backend failures.
type Persistence interface {
	Read(ctx context.Context, id identity.Identity) []Line
	Write(ctx context.Context, id identity.Identity, items []Line)
	Delete(ctx context.Context, id identity.Identity)
}

// cloneLines returns a deep-enough copy of items so callers can't mutate
// the store's internal slice.
func cloneLines(items []Line) []Line {
	if items == nil {
		return nil
	}
	out := make([]Line, len(items))
	copy(out, items)
	return out
}

// recount computes the total quantity across all lines. The store never
// tracks this sum incrementally; it is recomputed inside every mutation.
func recount(items []Line) int {
	total := 0
	for _, ln := range items {
		total += ln.Quantity
	}
	return total
}
