package voucher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		rule        *Rule
		items       []Item
		wantAmount  decimal.Decimal
		wantErr     error
		wantErrText string
	}{
		{
			name:       "percentage 10% off 200k",
			rule:       &Rule{Code: "PCT10", DiscountType: DiscountPercentage, Value: d("10")},
			items:      []Item{{ProductID: "p1", Price: d("100000"), Quantity: 2}},
			wantAmount: d("20000"),
		},
		{
			name: "percentage capped by max discount",
			rule: &Rule{
				Code:         "PCT50MAX",
				DiscountType: DiscountPercentage,
				Value:        d("50"),
				MaxDiscount:  d("50000"),
			},
			items:      []Item{{ProductID: "p1", Price: d("300000"), Quantity: 1}},
			wantAmount: d("50000"),
		},
		{
			name:       "percentage rounds to whole dong",
			rule:       &Rule{Code: "PCT15", DiscountType: DiscountPercentage, Value: d("15")},
			items:      []Item{{ProductID: "p1", Price: d("33333"), Quantity: 1}},
			wantAmount: d("5000"), // 4999.95
		},
		{
			name:       "percentage 100% equals subtotal",
			rule:       &Rule{Code: "FREE", DiscountType: DiscountPercentage, Value: d("100")},
			items:      []Item{{ProductID: "p1", Price: d("25000"), Quantity: 4}},
			wantAmount: d("100000"),
		},
		{
			name:       "fixed 20k",
			rule:       &Rule{Code: "SALE20K", DiscountType: DiscountFixed, Value: d("20000")},
			items:      []Item{{ProductID: "p1", Price: d("100000"), Quantity: 2}},
			wantAmount: d("20000"),
		},
		{
			name:       "fixed capped at subtotal",
			rule:       &Rule{Code: "BIG", DiscountType: DiscountFixed, Value: d("500000")},
			items:      []Item{{ProductID: "p1", Price: d("50000"), Quantity: 2}},
			wantAmount: d("100000"),
		},
		{
			name: "free lowest",
			rule: &Rule{Code: "FREELOW", DiscountType: DiscountFreeLowest},
			items: []Item{
				{ProductID: "p1", Price: d("50000"), Quantity: 1},
				{ProductID: "p2", Price: d("10000"), Quantity: 3},
				{ProductID: "p3", Price: d("150000"), Quantity: 1},
			},
			wantAmount: d("10000"),
		},
		{
			name:    "min items not met",
			rule:    &Rule{Code: "MIN3", DiscountType: DiscountFixed, Value: d("5000"), MinItems: 3},
			items:   []Item{{ProductID: "p1", Price: d("20000"), Quantity: 2}},
			wantErr: ErrInvalidVoucher,
		},
		{
			name:       "min items counts quantities",
			rule:       &Rule{Code: "MIN3", DiscountType: DiscountFixed, Value: d("5000"), MinItems: 3},
			items:      []Item{{ProductID: "p1", Price: d("20000"), Quantity: 3}},
			wantAmount: d("5000"),
		},
		{
			name:       "empty cart yields zero",
			rule:       &Rule{Code: "ANY", DiscountType: DiscountFixed, Value: d("5000")},
			items:      nil,
			wantAmount: d("0"),
		},
		{
			name:        "unsupported discount type",
			rule:        &Rule{Code: "BAD", DiscountType: DiscountType("bogus"), Value: d("10")},
			items:       []Item{{ProductID: "p1", Price: d("10000"), Quantity: 1}},
			wantErrText: "unsupported discount type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.rule, tt.items)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.wantErrText != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrText)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
			assert.Equal(t, tt.rule.Code, got.Code)
		})
	}
}
