package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/voucher"
	"github.com/xenking/storefront/internal/format"
)

// CreateCart stores an empty cart under a fresh id.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	id := h.newID()
	if err := h.carts.Save(r.Context(), id, cart.State{}); err != nil {
		fail(w, r, errors.Wrap(err, "create cart"))
		return
	}
	h.writeCart(w, http.StatusCreated, cart.NewStore(id, cart.State{}, h.carts))
}

// GetCart returns the cart view.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadStore(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, store)
}

// ClearCart empties the cart and drops its voucher.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadStore(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	store.Clear(r.Context())
	h.writeCart(w, http.StatusOK, store)
}

type itemRequest struct {
	ProductID   string
	VariantID   string
	Quantity    int
	hasQuantity bool
}

func decodeItemRequest(r *http.Request) (itemRequest, error) {
	var req itemRequest
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = d.Str()
		case "variantId":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.VariantID, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
			req.hasQuantity = true
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}
	if req.ProductID == "" {
		return req, badRequest("productId is required")
	}
	return req, nil
}

// AddItem resolves a product (and variant) from the catalog and merges it
// into the cart. Quantity defaults to 1 and is clamped to the stock.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeItemRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !req.hasQuantity {
		req.Quantity = 1
	}
	if req.Quantity <= 0 {
		fail(w, r, badRequest("quantity must be positive"))
		return
	}

	ctx := r.Context()
	store, err := h.loadStore(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	p, err := h.products.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			err = &checkout.ProductNotFoundError{ProductID: req.ProductID, VariantID: req.VariantID}
		}
		fail(w, r, err)
		return
	}
	offer, ok := p.Offer(req.VariantID)
	if !ok {
		fail(w, r, &checkout.ProductNotFoundError{ProductID: p.ID, VariantID: req.VariantID})
		return
	}
	if offer.Stock <= 0 {
		fail(w, r, &checkout.InsufficientStockError{
			ProductID: p.ID,
			VariantID: req.VariantID,
			Requested: req.Quantity,
		})
		return
	}

	store.Add(ctx, cart.LineItem{
		ProductID:   p.ID,
		VariantID:   req.VariantID,
		Name:        p.Name,
		VariantName: offer.VariantName,
		UnitPrice:   offer.Price,
		Quantity:    req.Quantity,
		MaxQuantity: offer.Stock,
		Image:       h.imageURL(p.Image.Thumbnail),
	})
	h.writeCart(w, http.StatusOK, store)
}

// UpdateItem sets the quantity of a line. Zero or less removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeItemRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !req.hasQuantity {
		fail(w, r, badRequest("quantity is required"))
		return
	}

	store, err := h.loadStore(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	store.UpdateQuantity(r.Context(), req.ProductID, req.VariantID, req.Quantity)
	h.writeCart(w, http.StatusOK, store)
}

// RemoveItem drops the line named by the productId and variantId query
// parameters.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := q.Get("productId")
	if productID == "" {
		fail(w, r, badRequest("productId is required"))
		return
	}

	store, err := h.loadStore(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	store.Remove(r.Context(), productID, q.Get("variantId"))
	h.writeCart(w, http.StatusOK, store)
}

// ApplyVoucher checks a code against the cart and stores its discount.
// No use is consumed until the order is placed.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	var code string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		code, err = d.Str()
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if code == "" {
		fail(w, r, badRequest("code is required"))
		return
	}

	ctx := r.Context()
	store, err := h.loadStore(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	d, err := h.vouchers.Check(ctx, code, voucherItems(store.Items()))
	if err != nil {
		fail(w, r, errors.Wrap(err, "check voucher"))
		return
	}
	store.ApplyVoucher(ctx, d.Code, d.Amount)
	h.writeCart(w, http.StatusOK, store)
}

// ClearVoucher removes the voucher from the cart.
func (h *Handler) ClearVoucher(w http.ResponseWriter, r *http.Request) {
	store, err := h.loadStore(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	store.ClearVoucher(r.Context())
	h.writeCart(w, http.StatusOK, store)
}

func voucherItems(items []cart.LineItem) []voucher.Item {
	out := make([]voucher.Item, len(items))
	for i, item := range items {
		out[i] = voucher.Item{
			ProductID: item.ProductID,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return out
}

func (h *Handler) writeCart(w http.ResponseWriter, code int, store *cart.Store) {
	items := store.Items()
	subtotal := store.Subtotal()
	discount := store.VoucherDiscount()
	total := store.Total()
	status := h.policy.Evaluate(subtotal, false)

	count := 0
	for _, item := range items {
		count += item.Quantity
	}

	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(store.ID())

		e.FieldStart("items")
		e.ArrStart()
		for _, item := range items {
			encodeCartItem(e, item)
		}
		e.ArrEnd()

		e.FieldStart("itemCount")
		e.Int(count)
		e.FieldStart("subtotal")
		cart.EncodeAmount(e, subtotal)
		if vc := store.VoucherCode(); vc != "" {
			e.FieldStart("voucher")
			e.ObjStart()
			e.FieldStart("code")
			e.Str(vc)
			e.FieldStart("discount")
			cart.EncodeAmount(e, discount)
			e.ObjEnd()
		}
		e.FieldStart("total")
		cart.EncodeAmount(e, total)

		e.FieldStart("shipping")
		encodeShipping(e, status)

		e.FieldStart("display")
		encodeDisplay(e,
			amount{"subtotal", subtotal},
			amount{"voucherDiscount", discount},
			amount{"total", total},
			amount{"freeShippingRemaining", status.Remaining},
		)
		e.ObjEnd()
	})
}

func encodeCartItem(e *jx.Encoder, item cart.LineItem) {
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
	e.FieldStart("image")
	e.Str(item.Image)
	e.FieldStart("unitPrice")
	cart.EncodeAmount(e, item.UnitPrice)
	e.FieldStart("quantity")
	e.Int(item.Quantity)
	e.FieldStart("maxQuantity")
	e.Int(item.MaxQuantity)
	e.FieldStart("lineTotal")
	cart.EncodeAmount(e, item.LineTotal())
	e.FieldStart("lineTotalDisplay")
	e.Str(format.VND(item.LineTotal()))
	e.ObjEnd()
}
