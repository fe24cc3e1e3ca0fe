// Package checkout computes payable totals and places orders from carts.
package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/shipping"
)

// Input holds the independent amounts that make up a checkout total.
type Input struct {
	Subtotal        decimal.Decimal
	VoucherDiscount decimal.Decimal
	LoyaltyDiscount decimal.Decimal
	// ShippingFee is charged only when shipping is not free.
	ShippingFee  decimal.Decimal
	TierFreeShip bool
}

// Summary is the computed checkout breakdown.
type Summary struct {
	Subtotal        decimal.Decimal
	VoucherDiscount decimal.Decimal
	LoyaltyDiscount decimal.Decimal
	// ShippingFee is the fee actually charged, zero when shipping is free.
	ShippingFee decimal.Decimal
	Shipping    shipping.Status
	Total       decimal.Decimal
}

// Aggregator folds discounts and shipping into a total.
type Aggregator struct {
	Policy shipping.Policy
}

// Aggregate computes a summary with the default shipping policy.
func Aggregate(in Input) Summary {
	return Aggregator{Policy: shipping.DefaultPolicy()}.Aggregate(in)
}

// Aggregate computes total = max(0, subtotal - voucher - loyalty) + fee.
// Negative inputs count as zero. Discounts do not cap each other; the
// floor is applied once after both.
func (a Aggregator) Aggregate(in Input) Summary {
	subtotal := nonNegative(in.Subtotal)
	voucherDiscount := nonNegative(in.VoucherDiscount)
	loyaltyDiscount := nonNegative(in.LoyaltyDiscount)

	status := a.Policy.Evaluate(subtotal, in.TierFreeShip)
	fee := decimal.NewFromInt(0)
	if !status.Free {
		fee = nonNegative(in.ShippingFee)
	}

	net := nonNegative(subtotal.Sub(voucherDiscount).Sub(loyaltyDiscount))

	return Summary{
		Subtotal:        subtotal,
		VoucherDiscount: voucherDiscount,
		LoyaltyDiscount: loyaltyDiscount,
		ShippingFee:     fee,
		Shipping:        status,
		Total:           net.Add(fee),
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.NewFromInt(0)
	}
	return d
}
