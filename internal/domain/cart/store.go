package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Store.Load when no cart is stored under an id.
var ErrNotFound = errors.New("cart not found")

// Store persists cart snapshots.
type Store interface {
	// Load returns the stored cart or ErrNotFound.
	Load(ctx context.Context, cartID string) (State, error)
	// Save replaces the stored cart.
	Save(ctx context.Context, cartID string, s State) error
	// Clear removes the stored cart. Clearing a missing cart is not an error.
	Clear(ctx context.Context, cartID string) error
}
