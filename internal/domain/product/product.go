package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Slug     string
	Name     string
	Price    decimal.Decimal
	Category string
	Image    Image
	// Stock bounds the quantity a cart may hold when the product has no variants.
	Stock    int
	Variants []Variant
}

// Variant is a purchasable option of a product (size, colour, ...).
type Variant struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
	// Attributes is open-ended: variant schemas differ per product.
	Attributes map[string]string
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Variant returns the variant with the given id.
func (p *Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Offer is the resolved price and stock for a product or one of its variants.
type Offer struct {
	Price       decimal.Decimal
	Stock       int
	VariantName string
}

// Offer resolves the purchasable price and stock. An empty variantID
// selects the product itself. It reports false for an unknown variant.
func (p *Product) Offer(variantID string) (Offer, bool) {
	if variantID == "" {
		return Offer{Price: p.Price, Stock: p.Stock}, true
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return Offer{}, false
	}
	return Offer{Price: v.Price, Stock: v.Stock, VariantName: v.Name}, true
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	// GetByID accepts either the product id or its slug.
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
