// Package handler serves the storefront JSON API on a net/http ServeMux.
package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/domain/voucher"
)

// Checkout quotes carts and places orders. It is satisfied by
// *checkout.Service.
type Checkout interface {
	Quote(ctx context.Context, req checkout.QuoteRequest) (*checkout.Quote, error)
	PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*order.Order, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	// Policy drives the free-shipping progress shown in the cart view.
	Policy shipping.Policy
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Products product.Repository
	Carts    cart.Repository
	Vouchers voucher.Validator
	Checkout Checkout
	Keys     *Authenticator
}

// Handler implements the storefront HTTP API.
type Handler struct {
	products product.Repository
	carts    cart.Repository
	vouchers voucher.Validator
	checkout Checkout
	keys     *Authenticator

	imageBaseURL string
	policy       shipping.Policy
	newID        func() string
}

// New constructs a Handler.
func New(cfg Config, deps Deps) *Handler {
	policy := cfg.Policy
	if !policy.Threshold.IsPositive() {
		policy = shipping.DefaultPolicy()
	}
	return &Handler{
		products:     deps.Products,
		carts:        deps.Carts,
		vouchers:     deps.Vouchers,
		checkout:     deps.Checkout,
		keys:         deps.Keys,
		imageBaseURL: cfg.ImageBaseURL,
		policy:       policy,
		newID:        uuid.NewString,
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/product", h.ListProducts)
	mux.HandleFunc("GET /api/product/{id}", h.GetProduct)

	mux.HandleFunc("POST /api/cart", h.CreateCart)
	mux.HandleFunc("GET /api/cart/{id}", h.GetCart)
	mux.HandleFunc("DELETE /api/cart/{id}", h.ClearCart)
	mux.HandleFunc("POST /api/cart/{id}/items", h.AddItem)
	mux.HandleFunc("PATCH /api/cart/{id}/items", h.UpdateItem)
	mux.HandleFunc("DELETE /api/cart/{id}/items", h.RemoveItem)
	mux.HandleFunc("POST /api/cart/{id}/voucher", h.ApplyVoucher)
	mux.HandleFunc("DELETE /api/cart/{id}/voucher", h.ClearVoucher)
	mux.HandleFunc("GET /api/cart/{id}/quote", h.Quote)

	mux.Handle("POST /api/order", h.keys.Require(ScopePlaceOrder, http.HandlerFunc(h.PlaceOrder)))
}

// loadStore opens the cart named by the {id} path value.
func (h *Handler) loadStore(r *http.Request) (*cart.Store, error) {
	return h.openStore(r.Context(), r.PathValue("id"))
}

func (h *Handler) openStore(ctx context.Context, id string) (*cart.Store, error) {
	if id == "" {
		return nil, badRequest("cart id is required")
	}
	state, err := h.carts.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return cart.NewStore(id, state, h.carts), nil
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || isAbsoluteURL(path) {
		return path
	}
	return h.imageBaseURL + path
}

func isAbsoluteURL(s string) bool {
	for _, prefix := range []string{"http://", "https://", "//"} {
		if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
