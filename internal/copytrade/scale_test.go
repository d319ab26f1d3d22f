package copytrade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestScale(t *testing.T) {
	pnl := dec("120.5")
	negativePnl := dec("-0.000000015")

	tests := []struct {
		name         string
		quantity     decimal.Decimal
		pnl          *decimal.Decimal
		ratio        decimal.Decimal
		wantQuantity string
		wantPnl      string
		wantReason   SkipReason
	}{
		{
			name:         "half ratio",
			quantity:     dec("1.5"),
			pnl:          &pnl,
			ratio:        dec("0.5"),
			wantQuantity: "0.75",
			wantPnl:      "60.25",
		},
		{
			name:         "rounds to eight places",
			quantity:     dec("0.123456789"),
			ratio:        dec("1"),
			wantQuantity: "0.12345679",
			wantPnl:      "0",
		},
		{
			name:         "half rounds away from zero",
			quantity:     dec("0.000000025"),
			pnl:          &negativePnl,
			ratio:        dec("1"),
			wantQuantity: "0.00000003",
			wantPnl:      "-0.00000002",
		},
		{
			name:       "zero ratio",
			quantity:   dec("10"),
			ratio:      decimal.Zero,
			wantReason: SkipNonPositiveRatio,
		},
		{
			name:       "negative ratio",
			quantity:   dec("10"),
			ratio:      dec("-0.5"),
			wantReason: SkipNonPositiveRatio,
		},
		{
			name:       "rounds to zero",
			quantity:   dec("0.00000001"),
			ratio:      dec("0.1"),
			wantReason: SkipZeroQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leg := Scale(tt.quantity, tt.pnl, tt.ratio)
			assert.Equal(t, tt.wantReason, leg.Reason)
			if tt.wantReason != SkipNone {
				assert.False(t, leg.Eligible())
				return
			}
			assert.True(t, leg.Eligible())
			assert.True(t, leg.Quantity.Equal(dec(tt.wantQuantity)), "quantity %s", leg.Quantity)
			assert.True(t, leg.Pnl.Equal(dec(tt.wantPnl)), "pnl %s", leg.Pnl)
		})
	}
}

func TestScaleIsDeterministic(t *testing.T) {
	q := dec("3.14159265358979")
	r := dec("0.333333333")
	first := Scale(q, nil, r)
	for i := 0; i < 100; i++ {
		assert.True(t, Scale(q, nil, r).Quantity.Equal(first.Quantity))
	}
	assert.Equal(t, "1.04719755", first.Quantity.String())
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "no active followers", Summary(0, 0, 0))
	assert.Equal(t, "3 copy trade(s) created", Summary(3, 0, 0))
	assert.Equal(t, "2 copy trade(s) created, 1 skipped due to non-positive ratio", Summary(2, 1, 0))
	assert.Equal(t, "0 copy trade(s) created, 1 skipped due to non-positive ratio, 2 skipped due to zero scaled quantity", Summary(0, 1, 2))
}
