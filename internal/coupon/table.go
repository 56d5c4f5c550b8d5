// Package coupon holds the fixed coupon table used by the pricing pipeline.
package coupon

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const bloomFPR = 0.001

var one = decimal.NewFromInt(1)

// ErrInvalidRate is returned when a coupon rate falls outside [0, 1).
var ErrInvalidRate = errors.New("coupon rate must be in [0, 1)")

// Table maps uppercase coupon codes to discount rates in [0, 1). The table
// is immutable after construction and safe for concurrent readers. A bloom
// filter in front of the map answers most negative lookups without
// touching it; tables are expected to grow large when fed by the ingest
// pipeline.
type Table struct {
	rates  map[string]decimal.Decimal
	filter *bloom.BloomFilter
}

// NewTable builds a Table from the given code-to-rate mapping. Codes are
// uppercased; rates outside [0, 1) are rejected.
func NewTable(rates map[string]decimal.Decimal) (*Table, error) {
	capacity := uint(len(rates))
	if capacity < 1 {
		capacity = 1
	}

	t := &Table{
		rates:  make(map[string]decimal.Decimal, len(rates)),
		filter: bloom.NewWithEstimates(capacity, bloomFPR),
	}
	for code, rate := range rates {
		if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
			return nil, errors.Wrapf(ErrInvalidRate, "code %q rate %s", code, rate)
		}
		upper := strings.ToUpper(code)
		t.rates[upper] = rate
		t.filter.AddString(upper)
	}
	return t, nil
}

// Default returns the built-in storefront coupon table.
func Default() *Table {
	t, err := NewTable(map[string]decimal.Decimal{
		"SAVE10": decimal.RequireFromString("0.10"),
		"SAVE20": decimal.RequireFromString("0.20"),
		"SAVE30": decimal.RequireFromString("0.30"),
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Rate looks up the discount rate for a code, case-insensitively. The
// second return value reports whether the code is present.
func (t *Table) Rate(code string) (decimal.Decimal, bool) {
	upper := strings.ToUpper(code)
	if !t.filter.TestString(upper) {
		return decimal.Zero, false
	}
	rate, ok := t.rates[upper]
	return rate, ok
}

// Len returns the number of codes in the table.
func (t *Table) Len() int {
	return len(t.rates)
}
