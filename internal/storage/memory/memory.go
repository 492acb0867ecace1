// Package memory implements cart.Store in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-pricing/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps encoded carts in a map. Payloads go through the cart codec
// so behaviour matches the networked stores.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string][]byte)}
}

func (s *CartStore) Load(_ context.Context, cartID string) (cart.State, error) {
	s.mu.RLock()
	data, ok := s.carts[cartID]
	s.mu.RUnlock()
	if !ok {
		return cart.State{}, cart.ErrNotFound
	}
	return cart.Unmarshal(data)
}

func (s *CartStore) Save(_ context.Context, cartID string, st cart.State) error {
	data := cart.Marshal(st)
	s.mu.Lock()
	s.carts[cartID] = data
	s.mu.Unlock()
	return nil
}

func (s *CartStore) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	delete(s.carts, cartID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored carts.
func (s *CartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}
