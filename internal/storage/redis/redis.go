// Package redis implements cart.Store on Redis, one string key per cart.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/kart-pricing/internal/domain/cart"
)

// DefaultKeyPrefix matches the key the storefront used for its saved cart.
const DefaultKeyPrefix = "cart_v1"

// NewClient parses url and returns a client that answered a ping.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ cart.Store = (*CartStore)(nil)

// CartStore stores each cart under "<prefix>:<cartID>".
type CartStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// Option configures a CartStore.
type Option func(*CartStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *CartStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires carts ttl after their last write. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *CartStore) {
		s.ttl = ttl
	}
}

// NewCartStore returns a CartStore using client.
func NewCartStore(client redis.Cmdable, opts ...Option) *CartStore {
	s := &CartStore{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CartStore) key(cartID string) string {
	return s.prefix + ":" + cartID
}

func (s *CartStore) Load(ctx context.Context, cartID string) (cart.State, error) {
	data, err := s.client.Get(ctx, s.key(cartID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cart.State{}, cart.ErrNotFound
		}
		return cart.State{}, errors.Wrapf(err, "get cart %q", cartID)
	}
	return cart.Unmarshal(data)
}

func (s *CartStore) Save(ctx context.Context, cartID string, st cart.State) error {
	if err := s.client.Set(ctx, s.key(cartID), cart.Marshal(st), s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set cart %q", cartID)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, cartID string) error {
	if err := s.client.Del(ctx, s.key(cartID)).Err(); err != nil {
		return errors.Wrapf(err, "delete cart %q", cartID)
	}
	return nil
}
