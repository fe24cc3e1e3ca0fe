package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrEmptyCart is returned when placing an order from a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrLoyaltyUnavailable is returned when points are requested but the
	// balance could not be fetched.
	ErrLoyaltyUnavailable = errors.New("loyalty balance unavailable")
)

// ProductNotFoundError indicates a cart line references a product or
// variant that is no longer in the catalog.
type ProductNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *ProductNotFoundError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("product %s variant %s not found", e.ProductID, e.VariantID)
	}
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError indicates a cart line asks for more than is in stock.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
