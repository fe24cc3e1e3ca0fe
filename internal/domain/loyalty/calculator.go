package loyalty

import "github.com/shopspring/decimal"

// Redemption is the outcome of clamping a requested point amount.
type Redemption struct {
	RequestedPoints int64
	AppliedPoints   int64
	Discount        decimal.Decimal
}

// Calculator clamps point redemptions against a balance.
//
// MinPoints, when positive, rejects redemptions smaller than it by applying
// zero points. Zero disables the minimum.
type Calculator struct {
	MinPoints int64
}

// NewCalculator creates a calculator with the given minimum. Negative values
// are treated as zero.
func NewCalculator(minPoints int64) *Calculator {
	return &Calculator{MinPoints: max(minPoints, 0)}
}

// Available reports whether redemption can be offered for balance.
func Available(balance *Balance) bool {
	return balance != nil && balance.CurrentBalance > 0
}

// Presets returns the quick-select point amounts.
func Presets() []int64 {
	return []int64{500, 1000}
}

// Redeem clamps requested to [0, balance.CurrentBalance].
func (c *Calculator) Redeem(requested int64, balance *Balance) Redemption {
	r := Redemption{RequestedPoints: requested, Discount: decimal.NewFromInt(0)}
	if !Available(balance) {
		return r
	}

	applied := min(max(requested, 0), balance.CurrentBalance)
	if c.MinPoints > 0 && applied < c.MinPoints {
		applied = 0
	}

	r.AppliedPoints = applied
	r.Discount = decimal.NewFromInt(applied * PointValue)
	return r
}

// UseAll redeems the whole balance.
func (c *Calculator) UseAll(balance *Balance) Redemption {
	if balance == nil {
		return c.Redeem(0, nil)
	}
	return c.Redeem(balance.CurrentBalance, balance)
}

// Preset redeems one of the quick-select amounts.
func (c *Calculator) Preset(points int64, balance *Balance) Redemption {
	return c.Redeem(points, balance)
}
