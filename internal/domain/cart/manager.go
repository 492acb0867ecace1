package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const meterName = "github.com/xenking/kart-pricing/internal/domain/cart"

// Manager applies mutations to carts identified by id. Mutations of one cart
// are serialized; different carts proceed independently.
//
// The in-memory snapshot is authoritative while a cart is cached. After every
// mutation the new snapshot is handed to the Store; storage failures are
// logged and counted but never surface to callers. Empty carts are dropped
// from the cache as soon as no call uses them, and with WithIdleTimeout so
// are carts left untouched for longer than the timeout. A dropped cart is
// restored from the Store on next access.
type Manager struct {
	store Store
	idle  time.Duration
	now   func() time.Time

	mu    sync.Mutex
	carts map[string]*slot

	mutations metric.Int64Counter
	failures  metric.Int64Counter
}

type slot struct {
	// refs and lastUsed are guarded by Manager.mu.
	refs     int
	lastUsed time.Time

	mu     sync.Mutex
	loaded bool
	state  State
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	meterProvider metric.MeterProvider
	idleTimeout   time.Duration
}

// WithMeterProvider sets the provider for mutation and failure counters.
func WithMeterProvider(mp metric.MeterProvider) ManagerOption {
	return func(o *managerOptions) {
		o.meterProvider = mp
	}
}

// WithIdleTimeout lets Evict drop carts unused for d. Zero keeps non-empty
// carts cached until the process exits. Stores that expire carts should get
// a timeout no longer than their expiry.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		o.idleTimeout = d
	}
}

// NewManager creates a Manager persisting to store.
func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	o := managerOptions{meterProvider: noop.NewMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(meterName)
	mutations, err := meter.Int64Counter("cart.mutations",
		metric.WithDescription("Applied cart mutations"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create mutations counter")
	}
	failures, err := meter.Int64Counter("cart.persist.failures",
		metric.WithDescription("Cart storage operations that failed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create failures counter")
	}

	return &Manager{
		store:     store,
		idle:      o.idleTimeout,
		now:       time.Now,
		carts:     make(map[string]*slot),
		mutations: mutations,
		failures:  failures,
	}, nil
}

// Get returns the current snapshot of cartID, restoring it from the store on
// first access.
func (m *Manager) Get(ctx context.Context, cartID string) State {
	s := m.acquire(cartID)
	defer m.release(cartID, s)

	m.restore(ctx, cartID, s)
	return s.state
}

// SetQuantity sets productID to qty in cartID. qty <= 0 removes the entry.
func (m *Manager) SetQuantity(ctx context.Context, cartID, productID string, qty int) State {
	return m.apply(ctx, cartID, "set", func(st State) State {
		return SetQuantity(st, productID, qty)
	})
}

// Increase adds by units of productID to cartID.
func (m *Manager) Increase(ctx context.Context, cartID, productID string, by int) State {
	return m.apply(ctx, cartID, "increase", func(st State) State {
		return Increase(st, productID, by)
	})
}

// Decrease removes by units of productID from cartID.
func (m *Manager) Decrease(ctx context.Context, cartID, productID string, by int) State {
	return m.apply(ctx, cartID, "decrease", func(st State) State {
		return Decrease(st, productID, by)
	})
}

// Clear empties cartID and removes it from the store. The store is called
// even when the cart is already empty.
func (m *Manager) Clear(ctx context.Context, cartID string) State {
	s := m.acquire(cartID)
	defer m.release(cartID, s)

	s.loaded = true
	s.state = Clear(s.state)
	m.count(ctx, "clear")

	if err := m.store.Clear(ctx, cartID); err != nil {
		m.fail(ctx, cartID, "clear", err)
	}
	return s.state
}

func (m *Manager) apply(ctx context.Context, cartID, op string, fn func(State) State) State {
	s := m.acquire(cartID)
	defer m.release(cartID, s)

	m.restore(ctx, cartID, s)
	s.state = fn(s.state)
	m.count(ctx, op)

	if err := m.store.Save(ctx, cartID, s.state); err != nil {
		m.fail(ctx, cartID, "save", err)
	}
	return s.state
}

// restore loads the cart once. Must be called with s.mu held.
func (m *Manager) restore(ctx context.Context, cartID string, s *slot) {
	if s.loaded {
		return
	}
	s.loaded = true

	st, err := m.store.Load(ctx, cartID)
	switch {
	case err == nil:
		s.state = st
	case errors.Is(err, ErrNotFound):
		s.state = Empty()
	case errors.Is(err, ErrMalformed):
		zctx.From(ctx).Warn("Discarding malformed cart",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
		s.state = Empty()
	default:
		m.fail(ctx, cartID, "load", err)
		s.state = Empty()
	}
}

// acquire returns the locked slot of cartID, creating it if needed.
func (m *Manager) acquire(cartID string) *slot {
	m.mu.Lock()
	s, ok := m.carts[cartID]
	if !ok {
		s = &slot{}
		m.carts[cartID] = s
	}
	s.refs++
	m.mu.Unlock()

	s.mu.Lock()
	return s
}

// release unlocks s and drops it from the cache when it is empty and no other
// call holds or waits for it.
func (m *Manager) release(cartID string, s *slot) {
	s.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	s.lastUsed = m.now()
	// With refs at 0 nobody else can lock s until m.mu is released.
	if s.refs == 0 && s.state.IsEmpty() {
		delete(m.carts, cartID)
	}
}

// Cached returns the number of carts held in memory.
func (m *Manager) Cached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts)
}

// Evict drops carts that have been idle for longer than the idle timeout.
// It does nothing without WithIdleTimeout.
func (m *Manager) Evict() {
	if m.idle <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idle)
	for id, s := range m.carts {
		if s.refs == 0 && s.lastUsed.Before(cutoff) {
			delete(m.carts, id)
		}
	}
}

// Run calls Evict every half idle timeout until ctx is done. It returns at
// once without WithIdleTimeout.
func (m *Manager) Run(ctx context.Context) {
	if m.idle <= 0 {
		return
	}
	ticker := time.NewTicker(max(m.idle/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Evict()
		}
	}
}

func (m *Manager) count(ctx context.Context, op string) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Manager) fail(ctx context.Context, cartID, op string, err error) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	zctx.From(ctx).Warn("Cart storage failed",
		zap.String("cart_id", cartID),
		zap.String("op", op),
		zap.Error(err),
	)
}
