package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Rate(t *testing.T) {
	tbl := Default()

	tests := []struct {
		name     string
		code     string
		wantRate string
		wantOK   bool
	}{
		{name: "exact match", code: "SAVE20", wantRate: "0.20", wantOK: true},
		{name: "lowercase input", code: "save30", wantRate: "0.30", wantOK: true},
		{name: "mixed case input", code: "Save10", wantRate: "0.10", wantOK: true},
		{name: "unknown code", code: "NOPE", wantOK: false},
		{name: "empty code", code: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := tbl.Rate(tt.code)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, decimal.RequireFromString(tt.wantRate).Equal(rate))
			}
		})
	}
}

func TestNewTable_RejectsRateOutOfRange(t *testing.T) {
	_, err := NewTable(map[string]decimal.Decimal{
		"FULL": decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = NewTable(map[string]decimal.Decimal{
		"NEG": decimal.RequireFromString("-0.1"),
	})
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestNewTable_UppercasesCodes(t *testing.T) {
	tbl, err := NewTable(map[string]decimal.Decimal{
		"welcome5": decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)

	_, ok := tbl.Rate("WELCOME5")
	assert.True(t, ok)
	assert.Equal(t, 1, tbl.Len())
}

func TestNewTable_Empty(t *testing.T) {
	tbl, err := NewTable(nil)
	require.NoError(t, err)

	_, ok := tbl.Rate("ANY")
	assert.False(t, ok)
}
