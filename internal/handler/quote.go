package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/loyalty"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/format"
)

// withBearer forwards the customer's bearer token, if any, to the loyalty
// balance lookup.
func withBearer(r *http.Request) *http.Request {
	token, ok := auth.ParseBearer(r.Header.Get("Authorization"))
	if !ok {
		return r
	}
	return r.WithContext(auth.WithBearer(r.Context(), token))
}

// Quote returns the checkout summary for the cart and the requested
// points (query parameter points: a number, or "all" for the whole
// balance; default 0).
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var (
		points int64
		useAll bool
	)
	switch raw := r.URL.Query().Get("points"); raw {
	case "":
	case "all":
		useAll = true
	default:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fail(w, r, badRequest(`points must be an integer or "all"`))
			return
		}
		points = v
	}

	r = withBearer(r)
	store, err := h.loadStore(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	q, err := h.checkout.Quote(r.Context(), checkout.QuoteRequest{Store: store, Points: points, UseAll: useAll})
	if err != nil {
		fail(w, r, errors.Wrap(err, "quote"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("cartId")
		e.Str(store.ID())
		encodeSummary(e, q.Summary)

		if q.VoucherCode != "" {
			e.FieldStart("voucher")
			encodeQuoteVoucher(e, q)
		}

		e.FieldStart("loyalty")
		encodeLoyalty(e, q)

		e.FieldStart("display")
		encodeDisplay(e,
			amount{"subtotal", q.Summary.Subtotal},
			amount{"voucherDiscount", q.Summary.VoucherDiscount},
			amount{"loyaltyDiscount", q.Summary.LoyaltyDiscount},
			amount{"shippingFee", q.Summary.ShippingFee},
			amount{"total", q.Summary.Total},
			amount{"freeShippingRemaining", q.Summary.Shipping.Remaining},
		)
		e.ObjEnd()
	})
}

// encodeSummary writes the summary fields into an open object.
func encodeSummary(e *jx.Encoder, s checkout.Summary) {
	e.FieldStart("subtotal")
	cart.EncodeAmount(e, s.Subtotal)
	e.FieldStart("voucherDiscount")
	cart.EncodeAmount(e, s.VoucherDiscount)
	e.FieldStart("loyaltyDiscount")
	cart.EncodeAmount(e, s.LoyaltyDiscount)
	e.FieldStart("shippingFee")
	cart.EncodeAmount(e, s.ShippingFee)
	e.FieldStart("total")
	cart.EncodeAmount(e, s.Total)
	e.FieldStart("shipping")
	encodeShipping(e, s.Shipping)
}

func encodeQuoteVoucher(e *jx.Encoder, q *checkout.Quote) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(q.VoucherCode)
	e.FieldStart("applied")
	e.Bool(q.VoucherError == nil)
	if q.VoucherError != nil {
		e.FieldStart("error")
		e.Str(q.VoucherError.Error())
	}
	e.ObjEnd()
}

func encodeLoyalty(e *jx.Encoder, q *checkout.Quote) {
	e.ObjStart()
	e.FieldStart("available")
	e.Bool(q.LoyaltyAvailable)
	e.FieldStart("requestedPoints")
	e.Int64(q.Redemption.RequestedPoints)
	e.FieldStart("appliedPoints")
	e.Int64(q.Redemption.AppliedPoints)
	e.FieldStart("discount")
	cart.EncodeAmount(e, q.Redemption.Discount)
	if b := q.Balance; b != nil {
		e.FieldStart("balance")
		e.Int64(b.CurrentBalance)
		e.FieldStart("maxDiscount")
		cart.EncodeAmount(e, decimal.NewFromInt(b.CurrentBalance*loyalty.PointValue))
		e.FieldStart("tier")
		e.Str(b.Tier.String())
		e.FieldStart("tierMultiplier")
		e.Str(b.TierMultiplier.String())
		e.FieldStart("tierFreeShip")
		e.Bool(b.TierFreeShip)
		e.FieldStart("presets")
		e.ArrStart()
		for _, p := range loyalty.Presets() {
			e.Int64(p)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func encodeShipping(e *jx.Encoder, s shipping.Status) {
	e.ObjStart()
	e.FieldStart("free")
	e.Bool(s.Free)
	e.FieldStart("remaining")
	cart.EncodeAmount(e, s.Remaining)
	e.FieldStart("progress")
	e.Int(s.Progress)
	e.ObjEnd()
}

type amount struct {
	name  string
	value decimal.Decimal
}

// encodeDisplay writes VND strings for the given amounts, in order.
func encodeDisplay(e *jx.Encoder, amounts ...amount) {
	e.ObjStart()
	for _, a := range amounts {
		e.FieldStart(a.name)
		e.Str(format.VND(a.value))
	}
	e.ObjEnd()
}
