package cart

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the authoritative container for one cart. Every mutation is
// followed by a Save on the injected Persister. Mutations never fail:
// out-of-range input is clamped or ignored, and persistence errors are
// logged while the in-memory state keeps the change.
type Store struct {
	mu        sync.Mutex
	id        string
	state     State
	persister Persister
}

// NewStore creates a Store for cart id seeded with state. A nil persister
// keeps the cart in memory only.
func NewStore(id string, state State, persister Persister) *Store {
	return &Store{
		id:        id,
		state:     normalize(state),
		persister: persister,
	}
}

// ID returns the cart identifier.
func (s *Store) ID() string {
	return s.id
}

// Add appends item, or merges it into an existing line with the same
// product and variant. The merged quantity is clamped to MaxQuantity, and
// the incoming item's price, stock bound and labels replace the old ones.
func (s *Store) Add(ctx context.Context, item LineItem) {
	if item.ProductID == "" || item.Quantity <= 0 || item.MaxQuantity <= 0 {
		return
	}
	item.UnitPrice = whole(item.UnitPrice)

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.state.index(item.Key()); i >= 0 {
		existing := s.state.Items[i]
		item.Quantity = min(existing.Quantity+item.Quantity, item.MaxQuantity)
		s.state.Items[i] = item
	} else {
		item.Quantity = min(item.Quantity, item.MaxQuantity)
		s.state.Items = append(s.state.Items, item)
	}
	s.commit(ctx)
}

// UpdateQuantity sets the quantity of an existing line. Quantities above
// MaxQuantity are clamped; zero or negative removes the line. Unknown
// lines are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID, variantID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.index(Key{ProductID: productID, VariantID: variantID})
	if i < 0 {
		return
	}
	if quantity <= 0 {
		s.removeAt(i)
	} else {
		s.state.Items[i].Quantity = min(quantity, s.state.Items[i].MaxQuantity)
	}
	s.commit(ctx)
}

// Remove deletes a line. Removing an absent line is a no-op.
func (s *Store) Remove(ctx context.Context, productID, variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.index(Key{ProductID: productID, VariantID: variantID})
	if i < 0 {
		return
	}
	s.removeAt(i)
	s.commit(ctx)
}

// RefreshPrice updates the unit price and stock bound of a line, e.g. from
// a fresh catalog read. The quantity is re-clamped; a zero bound removes
// the line.
func (s *Store) RefreshPrice(ctx context.Context, productID, variantID string, unitPrice decimal.Decimal, maxQuantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.state.index(Key{ProductID: productID, VariantID: variantID})
	if i < 0 {
		return
	}
	if maxQuantity <= 0 {
		s.removeAt(i)
	} else {
		item := &s.state.Items[i]
		item.UnitPrice = whole(unitPrice)
		item.MaxQuantity = maxQuantity
		item.Quantity = min(item.Quantity, maxQuantity)
	}
	s.commit(ctx)
}

// ApplyVoucher stores a voucher code and the discount it grants. The code
// is not validated here. An empty code clears the voucher.
func (s *Store) ApplyVoucher(ctx context.Context, code string, discount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code == "" {
		s.state.VoucherCode, s.state.VoucherDiscount = "", zero()
	} else {
		s.state.VoucherCode, s.state.VoucherDiscount = code, whole(discount)
	}
	s.commit(ctx)
}

// ClearVoucher removes the voucher code and discount.
func (s *Store) ClearVoucher(ctx context.Context) {
	s.ApplyVoucher(ctx, "", decimal.Decimal{})
}

// Clear empties the cart, e.g. after a successful order.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = normalize(State{})
	s.commit(ctx)
}

// State returns a copy of the current cart state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Items returns a copy of the line items in display order.
func (s *Store) Items() []LineItem {
	return s.State().Items
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Items)
}

// Empty reports whether the cart has no lines.
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// VoucherCode returns the applied voucher code, if any.
func (s *Store) VoucherCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.VoucherCode
}

// Subtotal returns the sum of UnitPrice * Quantity over all lines.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Subtotal()
}

// VoucherDiscount returns the voucher discount bounded by the subtotal.
// It is zero when no voucher code is set.
func (s *Store) VoucherDiscount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voucherDiscount()
}

// Total returns the subtotal minus the voucher discount, floored at zero.
// Loyalty and shipping are folded in by checkout.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.state.Subtotal().Sub(s.voucherDiscount())
	if total.IsNegative() {
		return zero()
	}
	return total
}

func (s *Store) voucherDiscount() decimal.Decimal {
	if s.state.VoucherCode == "" {
		return zero()
	}
	return decimal.Min(s.state.VoucherDiscount, s.state.Subtotal())
}

func (s *Store) removeAt(i int) {
	s.state.Items = append(s.state.Items[:i], s.state.Items[i+1:]...)
	if len(s.state.Items) == 0 {
		s.state.Items = nil
	}
}

// commit hands a snapshot to the persister. Must be called with s.mu held.
func (s *Store) commit(ctx context.Context) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(ctx, s.id, s.state.Clone()); err != nil {
		zctx.From(ctx).Warn("Persist cart",
			zap.String("cart_id", s.id),
			zap.Error(err),
		)
	}
}
