// Package loyalty converts loyalty point balances into checkout discounts.
package loyalty

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// PointValue is the discount in VND granted per redeemed point.
	PointValue = 10
	// MinRedeemPoints is the smallest redemption the loyalty program advertises.
	MinRedeemPoints = 100
)

// Tier is a loyalty-program rank.
type Tier int

const (
	TierBronze Tier = iota
	TierGold
	TierDiamond
)

// ParseTier is case-insensitive. Unknown values fall back to Bronze.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gold":
		return TierGold
	case "diamond":
		return TierDiamond
	default:
		return TierBronze
	}
}

func (t Tier) String() string {
	switch t {
	case TierGold:
		return "Gold"
	case TierDiamond:
		return "Diamond"
	default:
		return "Bronze"
	}
}

// Balance is a read-only snapshot of a customer's loyalty account.
type Balance struct {
	CurrentBalance int64
	Tier           Tier
	TierMultiplier decimal.Decimal
	TierFreeShip   bool
}

// BalanceSource fetches the balance of the customer bound to ctx.
type BalanceSource interface {
	Balance(ctx context.Context) (*Balance, error)
}
