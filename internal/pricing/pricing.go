// Package pricing implements the checkout pricing pipeline:
// subtotal, discount, platform surcharge, payable total.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	// DefaultDiscountRate applies whenever no valid coupon is in effect.
	// Any non-empty order gets at least this discount; an invalid or
	// unapplied code silently falls back to it rather than erroring.
	DefaultDiscountRate = decimal.RequireFromString("0.10")

	// Surcharge is the flat platform charge added to any non-empty order.
	Surcharge = decimal.RequireFromString("5.00")
)

// Item is a line item for pricing purposes.
type Item struct {
	ID       string
	Price    decimal.Decimal
	Quantity int
}

// Rates resolves coupon codes to discount rates. Lookup is
// case-insensitive; ok is false for unknown codes.
type Rates interface {
	Rate(code string) (rate decimal.Decimal, ok bool)
}

// Quote is the computed pricing breakdown for a set of items.
type Quote struct {
	Subtotal     decimal.Decimal
	DiscountRate decimal.Decimal
	Discount     decimal.Decimal
	Surcharge    decimal.Decimal
	Total        decimal.Decimal
}

// Price computes the payable total for the given items.
//
// The discount rate comes from the coupon table when applied is true and
// the code resolves; otherwise DefaultDiscountRate is used. The discount
// is the only value rounded (2 decimal places); subtotal and total are
// not independently re-rounded. An empty (zero-subtotal) order carries no
// discount and no surcharge.
func Price(items []Item, code string, applied bool, rates Rates) Quote {
	subtotal := decimal.Zero
	for _, item := range items {
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}

	rate := DefaultDiscountRate
	if applied {
		if r, ok := rates.Rate(code); ok {
			rate = r
		}
	}

	discount := decimal.Zero
	surcharge := decimal.Zero
	if subtotal.IsPositive() {
		discount = subtotal.Mul(rate).Round(2)
		surcharge = Surcharge
	}

	return Quote{
		Subtotal:     subtotal,
		DiscountRate: rate,
		Discount:     discount,
		Surcharge:    surcharge,
		Total:        subtotal.Sub(discount).Add(surcharge),
	}
}
