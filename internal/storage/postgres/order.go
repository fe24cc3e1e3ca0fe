package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

const createOrderSQL = `INSERT INTO orders (id, items, subtotal, voucher_code, voucher_discount,
	points_redeemed, loyalty_discount, shipping_fee, total, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are stored as a JSONB array.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, encodeOrderItems(o.Items), o.Subtotal, o.VoucherCode, o.VoucherDiscount,
		o.PointsRedeemed, o.LoyaltyDiscount, o.ShippingFee, o.Total, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

func encodeOrderItems(items []order.Item) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		if it.VariantID != "" {
			e.FieldStart("variantId")
			e.Str(it.VariantID)
		}
		e.FieldStart("name")
		e.Str(it.Name)
		if it.VariantName != "" {
			e.FieldStart("variantName")
			e.Str(it.VariantName)
		}
		e.FieldStart("unitPrice")
		cart.EncodeAmount(&e, it.UnitPrice)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}
