package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/cart"
)

const (
	loadCartSQL = `SELECT payload FROM carts WHERE id = $1`

	saveCartSQL = `INSERT INTO carts (id, payload, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	clearCartSQL = `DELETE FROM carts WHERE id = $1`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store with one json row per cart.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

func (s *CartStore) Load(ctx context.Context, cartID string) (cart.State, error) {
	var payload []byte
	if err := s.pool.QueryRow(ctx, loadCartSQL, cartID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.State{}, cart.ErrNotFound
		}
		return cart.State{}, errors.Wrapf(err, "load cart %q", cartID)
	}
	return cart.Unmarshal(payload)
}

func (s *CartStore) Save(ctx context.Context, cartID string, st cart.State) error {
	// Passed as string so pgx sends it as text for the json column.
	if _, err := s.pool.Exec(ctx, saveCartSQL, cartID, string(cart.Marshal(st))); err != nil {
		return errors.Wrapf(err, "save cart %q", cartID)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, cartID string) error {
	if _, err := s.pool.Exec(ctx, clearCartSQL, cartID); err != nil {
		return errors.Wrapf(err, "clear cart %q", cartID)
	}
	return nil
}
