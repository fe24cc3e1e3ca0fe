// Package shipping decides when the shipping fee is waived.
package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the subtotal in VND from which shipping is free.
const DefaultThreshold = 500000

// DefaultFee is the flat shipping fee in VND.
const DefaultFee = 30000

// Status describes free-shipping eligibility for a subtotal.
type Status struct {
	Free bool
	// Remaining is the amount still needed to qualify, zero once reached.
	Remaining decimal.Decimal
	// Progress towards the threshold in percent, 0 to 100.
	Progress int
}

// Policy is the free-shipping rule.
type Policy struct {
	Threshold decimal.Decimal
}

// NewPolicy creates a policy. A non-positive threshold falls back to DefaultThreshold.
func NewPolicy(threshold decimal.Decimal) Policy {
	if !threshold.IsPositive() {
		threshold = decimal.NewFromInt(DefaultThreshold)
	}
	return Policy{Threshold: threshold}
}

// DefaultPolicy returns the policy with DefaultThreshold.
func DefaultPolicy() Policy {
	return NewPolicy(decimal.Decimal{})
}

// Evaluate computes the status for subtotal. A tier with free shipping
// qualifies regardless of the subtotal, but Remaining and Progress still
// describe the threshold.
func (p Policy) Evaluate(subtotal decimal.Decimal, tierFreeShip bool) Status {
	if subtotal.IsNegative() {
		subtotal = decimal.NewFromInt(0)
	}

	remaining := decimal.NewFromInt(0)
	if subtotal.LessThan(p.Threshold) {
		remaining = p.Threshold.Sub(subtotal)
	}

	progress := 100
	if p.Threshold.IsPositive() && remaining.IsPositive() {
		progress = int(subtotal.Mul(decimal.NewFromInt(100)).Div(p.Threshold).IntPart())
	}

	return Status{
		Free:      remaining.IsZero() || tierFreeShip,
		Remaining: remaining,
		Progress:  min(max(progress, 0), 100),
	}
}

// FeeSource provides the shipping fee charged when shipping is not free.
type FeeSource interface {
	Fee(ctx context.Context) (decimal.Decimal, error)
}

// FlatFee charges the same fee for every order.
type FlatFee struct {
	Amount decimal.Decimal
}

var _ FeeSource = FlatFee{}

// NewFlatFee creates a flat fee. A negative amount falls back to DefaultFee.
func NewFlatFee(amount decimal.Decimal) FlatFee {
	if amount.IsNegative() {
		amount = decimal.NewFromInt(DefaultFee)
	}
	return FlatFee{Amount: amount}
}

// Fee implements FeeSource.
func (f FlatFee) Fee(context.Context) (decimal.Decimal, error) {
	return f.Amount, nil
}
