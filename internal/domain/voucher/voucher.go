// Package voucher validates storefront voucher codes and computes the flat
// VND discount they grant for a cart.
package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported voucher discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the subtotal, optionally capped.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest removes the unit price of the cheapest item.
	DiscountFreeLowest DiscountType = "free_lowest"
)

var (
	// ErrInvalidVoucher is returned when a code is unknown or the cart does
	// not satisfy the voucher's minimum item requirement.
	ErrInvalidVoucher = errors.New("invalid voucher code")
	// ErrVoucherExpired is returned outside the voucher's validity window.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrUsageLimitReached is returned when a voucher has no uses left.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
)

// Rule defines a voucher's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	// MaxDiscount caps percentage discounts. Zero means no cap.
	MaxDiscount decimal.Decimal
	Description string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	// MaxUses of zero means unlimited.
	MaxUses int
	Uses    int
}

// Discount is the computed voucher discount.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Item is a cart line as seen by discount calculation.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Repository provides lookup and usage accounting of voucher rules.
type Repository interface {
	// FindByCode returns ErrInvalidVoucher for an unknown or inactive code.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// IncrementUses consumes one use, returning ErrUsageLimitReached when
	// none are left.
	IncrementUses(ctx context.Context, code string) error
	// ReleaseUse gives back one consumed use. Releasing a voucher with no
	// uses is a no-op.
	ReleaseUse(ctx context.Context, code string) error
}
