package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/format"
)

// PlaceOrder turns a cart into an order: {"cartId":"...","points":N}.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var (
		cartID string
		points int64
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cartId":
			cartID, err = d.Str()
		case "points":
			points, err = d.Int64()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if cartID == "" {
		fail(w, r, badRequest("cartId is required"))
		return
	}
	if points < 0 {
		fail(w, r, badRequest("points must not be negative"))
		return
	}

	r = withBearer(r)
	ctx := r.Context()
	store, err := h.openStore(ctx, cartID)
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.checkout.PlaceOrder(ctx, checkout.PlaceOrderRequest{Store: store, Points: points})
	if err != nil {
		if code, _ := statusOf(err); code < http.StatusInternalServerError {
			zctx.From(ctx).Info("Order rejected", zap.String("cart_id", cartID), zap.Error(err))
		}
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)

	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.ProductID)
		if item.VariantID != "" {
			e.FieldStart("variantId")
			e.Str(item.VariantID)
			e.FieldStart("variantName")
			e.Str(item.VariantName)
		}
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("unitPrice")
		cart.EncodeAmount(e, item.UnitPrice)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	cart.EncodeAmount(e, o.Subtotal)
	if o.VoucherCode != "" {
		e.FieldStart("voucherCode")
		e.Str(o.VoucherCode)
	}
	e.FieldStart("voucherDiscount")
	cart.EncodeAmount(e, o.VoucherDiscount)
	e.FieldStart("pointsRedeemed")
	e.Int64(o.PointsRedeemed)
	e.FieldStart("loyaltyDiscount")
	cart.EncodeAmount(e, o.LoyaltyDiscount)
	e.FieldStart("shippingFee")
	cart.EncodeAmount(e, o.ShippingFee)
	e.FieldStart("total")
	cart.EncodeAmount(e, o.Total)
	e.FieldStart("totalDisplay")
	e.Str(format.VND(o.Total))
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
