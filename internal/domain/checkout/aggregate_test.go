package checkout

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func vnd(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantFee   int64
		wantTotal int64
		wantFree  bool
	}{
		{
			name:      "voucher below threshold pays shipping",
			in:        Input{Subtotal: vnd(200000), VoucherDiscount: vnd(20000), ShippingFee: vnd(30000)},
			wantFee:   30000,
			wantTotal: 210000,
		},
		{
			name:      "voucher and loyalty",
			in:        Input{Subtotal: vnd(200000), VoucherDiscount: vnd(20000), LoyaltyDiscount: vnd(10000), ShippingFee: vnd(30000)},
			wantFee:   30000,
			wantTotal: 200000,
		},
		{
			name:      "free shipping at threshold",
			in:        Input{Subtotal: vnd(500000), ShippingFee: vnd(30000)},
			wantFree:  true,
			wantTotal: 500000,
		},
		{
			name:      "tier free ship",
			in:        Input{Subtotal: vnd(100000), ShippingFee: vnd(30000), TierFreeShip: true},
			wantFree:  true,
			wantTotal: 100000,
		},
		{
			name:      "free shipping is decided on subtotal before discounts",
			in:        Input{Subtotal: vnd(520000), VoucherDiscount: vnd(50000), ShippingFee: vnd(30000)},
			wantFree:  true,
			wantTotal: 470000,
		},
		{
			name:      "discounts exceed subtotal floor once",
			in:        Input{Subtotal: vnd(100000), VoucherDiscount: vnd(80000), LoyaltyDiscount: vnd(50000), ShippingFee: vnd(30000)},
			wantFee:   30000,
			wantTotal: 30000,
		},
		{
			name:      "negative inputs clamp",
			in:        Input{Subtotal: vnd(100000), VoucherDiscount: vnd(-5000), LoyaltyDiscount: vnd(-1), ShippingFee: vnd(-30000)},
			wantTotal: 100000,
		},
		{
			name:      "empty cart still pays fee",
			in:        Input{ShippingFee: vnd(30000)},
			wantFee:   30000,
			wantTotal: 30000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.in)

			assert.Equal(t, tt.wantFree, got.Shipping.Free)
			assert.True(t, vnd(tt.wantFee).Equal(got.ShippingFee), "fee %s", got.ShippingFee)
			assert.True(t, vnd(tt.wantTotal).Equal(got.Total), "total %s", got.Total)
		})
	}
}

func TestAggregate_NeverNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))

	for range 1000 {
		in := Input{
			Subtotal:        vnd(rng.Int64N(1000000)),
			VoucherDiscount: vnd(rng.Int64N(1000000)),
			LoyaltyDiscount: vnd(rng.Int64N(1000000)),
			ShippingFee:     vnd(rng.Int64N(50000)),
			TierFreeShip:    rng.IntN(2) == 0,
		}
		got := Aggregate(in)

		assert.False(t, got.Total.IsNegative(), "input %+v", in)
		net := in.Subtotal.Sub(in.VoucherDiscount).Sub(in.LoyaltyDiscount)
		if net.IsPositive() {
			assert.True(t, net.Add(got.ShippingFee).Equal(got.Total))
		} else {
			assert.True(t, got.ShippingFee.Equal(got.Total))
		}
	}
}
