package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a placed storefront order with its full pricing breakdown.
type Order struct {
	ID              string
	Items           []Item
	Subtotal        decimal.Decimal
	VoucherCode     string
	VoucherDiscount decimal.Decimal
	PointsRedeemed  int64
	LoyaltyDiscount decimal.Decimal
	ShippingFee     decimal.Decimal
	Total           decimal.Decimal
	CreatedAt       time.Time
}

// Item is a single order line, priced at placement time.
type Item struct {
	ProductID   string
	VariantID   string
	Name        string
	VariantName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
