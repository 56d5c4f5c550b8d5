// Package order defines the immutable order record produced at checkout
// and the transient store the confirmation view reads it back from.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shopkit/checkout/internal/cart"
)

// StatusPending is the initial status of every placed order.
const StatusPending = "pending"

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("order not found")

// Record is the immutable snapshot produced by order placement. It is
// never fed back into cart state.
type Record struct {
	ID          string
	Items       []cart.Line
	Total       decimal.Decimal
	Status      string
	SubmittedAt time.Time

	// Metadata carries the caller-supplied shipping/contact fields. The
	// engine stores it opaquely.
	Metadata map[string]string
}

// Store persists order records keyed by their id.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
}
