package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	getCartSQL = `SELECT document FROM carts WHERE id = $1`

	saveCartSQL = `INSERT INTO carts (id, document, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository stores cart documents in a JSONB column.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Load returns the stored state of cart id, or cart.ErrNotFound.
func (r *CartRepository) Load(ctx context.Context, id string) (cart.State, error) {
	var raw []byte
	if err := r.pool.QueryRow(ctx, getCartSQL, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.State{}, cart.ErrNotFound
		}
		return cart.State{}, errors.Wrapf(err, "load cart %q", id)
	}

	doc, err := cart.UnmarshalDocument(raw)
	if err != nil {
		return cart.State{}, errors.Wrapf(err, "load cart %q", id)
	}
	return doc.State, nil
}

// Save writes the state of cart id, creating the cart when needed.
// Concurrent writers of one cart race and the last write wins.
func (r *CartRepository) Save(ctx context.Context, id string, state cart.State) error {
	if _, err := r.pool.Exec(ctx, saveCartSQL, id, cart.MarshalDocument(state)); err != nil {
		return errors.Wrapf(err, "save cart %q", id)
	}
	return nil
}

// Delete removes cart id. Deleting an unknown cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteCartSQL, id); err != nil {
		return errors.Wrapf(err, "delete cart %q", id)
	}
	return nil
}
