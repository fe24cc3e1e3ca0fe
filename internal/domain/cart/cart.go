// Package cart implements the storefront cart: an ordered list of line
// items plus an optional voucher, with totals derived on every read.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by a Repository for an unknown cart id.
var ErrNotFound = errors.New("cart not found")

// Key identifies a line item. VariantID is empty for products without variants.
type Key struct {
	ProductID string
	VariantID string
}

// LineItem is a single product (or product variant) held in the cart.
type LineItem struct {
	ProductID   string
	VariantID   string
	Name        string
	VariantName string
	UnitPrice   decimal.Decimal
	Quantity    int
	MaxQuantity int
	Image       string
}

// Key returns the identity of the item within a cart.
func (i LineItem) Key() Key {
	return Key{ProductID: i.ProductID, VariantID: i.VariantID}
}

// LineTotal returns UnitPrice * Quantity.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// State is the persisted content of a cart. Items keep insertion order,
// which is also the display order.
type State struct {
	Items           []LineItem
	VoucherCode     string
	VoucherDiscount decimal.Decimal
}

// Subtotal returns the sum of all line totals.
func (s State) Subtotal() decimal.Decimal {
	sum := zero()
	for _, item := range s.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	if s.Items != nil {
		out.Items = make([]LineItem, len(s.Items))
		copy(out.Items, s.Items)
	}
	return out
}

func (s State) index(k Key) int {
	for i, item := range s.Items {
		if item.Key() == k {
			return i
		}
	}
	return -1
}

// Persister stores a cart snapshot after a mutation.
type Persister interface {
	Save(ctx context.Context, id string, state State) error
}

// Repository loads and stores carts.
type Repository interface {
	Persister
	Load(ctx context.Context, id string) (State, error)
	Delete(ctx context.Context, id string) error
}

// zero and whole keep every stored amount as an integral decimal with a
// zero exponent, so that states compare equal after a storage round trip.
func zero() decimal.Decimal {
	return decimal.NewFromInt(0)
}

func whole(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero()
	}
	return decimal.NewFromInt(d.Round(0).IntPart())
}

// normalize enforces the state invariants: positive quantities bounded by
// MaxQuantity, unique keys, whole non-negative amounts, and no voucher
// discount without a voucher code.
func normalize(s State) State {
	out := State{VoucherCode: s.VoucherCode, VoucherDiscount: zero()}
	if out.VoucherCode != "" {
		out.VoucherDiscount = whole(s.VoucherDiscount)
	}
	for _, item := range s.Items {
		if item.ProductID == "" || item.Quantity <= 0 || item.MaxQuantity <= 0 {
			continue
		}
		item.UnitPrice = whole(item.UnitPrice)
		item.Quantity = min(item.Quantity, item.MaxQuantity)
		if i := out.index(item.Key()); i >= 0 {
			merged := &out.Items[i]
			merged.Quantity = min(merged.Quantity+item.Quantity, merged.MaxQuantity)
			continue
		}
		out.Items = append(out.Items, item)
	}
	return out
}
