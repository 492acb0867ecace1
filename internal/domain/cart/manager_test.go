package cart

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mock implementations ---

type call struct {
	op     string
	cartID string
	state  State
}

type mockStore struct {
	mu      sync.Mutex
	stored  map[string]State
	loadErr error
	saveErr error
	calls   []call
}

func newMockStore() *mockStore {
	return &mockStore{stored: make(map[string]State)}
}

func (m *mockStore) Load(_ context.Context, cartID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{op: "load", cartID: cartID})
	if m.loadErr != nil {
		return State{}, m.loadErr
	}
	s, ok := m.stored[cartID]
	if !ok {
		return State{}, ErrNotFound
	}
	return s, nil
}

func (m *mockStore) Save(_ context.Context, cartID string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{op: "save", cartID: cartID, state: s})
	if m.saveErr != nil {
		return m.saveErr
	}
	m.stored[cartID] = s
	return nil
}

func (m *mockStore) Clear(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{op: "clear", cartID: cartID})
	delete(m.stored, cartID)
	return nil
}

func (m *mockStore) ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.op
	}
	return out
}

func newManager(t *testing.T, store Store) *Manager {
	t.Helper()
	m, err := NewManager(store)
	require.NoError(t, err)
	return m
}

// --- Tests ---

func TestManager_MutationsPersist(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	m := newManager(t, store)

	m.Increase(ctx, "c1", "Soup", 1)
	m.Increase(ctx, "c1", "Soup", 2)
	m.SetQuantity(ctx, "c1", "Bread", 1)
	got := m.Decrease(ctx, "c1", "Soup", 1)

	assert.Equal(t, map[string]int{"Soup": 2, "Bread": 1}, got.Items())
	assert.Equal(t, []string{"load", "save", "save", "save", "save"}, store.ops())
	assert.True(t, got.Equal(store.stored["c1"]))
}

func TestManager_RestoresOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.stored["c1"] = FromItems([]string{"Milk"}, map[string]int{"Milk": 2})
	m := newManager(t, store)

	assert.Equal(t, 2, m.Get(ctx, "c1").Quantity("Milk"))
	assert.Equal(t, 3, m.Increase(ctx, "c1", "Milk", 1).Quantity("Milk"))
	assert.Equal(t, []string{"load", "save"}, store.ops())
}

func TestManager_ClearEmptyCartStillClearsStore(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	m := newManager(t, store)

	got := m.Clear(ctx, "fresh")

	assert.True(t, got.IsEmpty())
	assert.Equal(t, []string{"clear"}, store.ops())
}

func TestManager_ClearRemovesStoredCart(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	m := newManager(t, store)

	m.SetQuantity(ctx, "c1", "Cheese", 1)
	m.Clear(ctx, "c1")

	_, ok := store.stored["c1"]
	assert.False(t, ok)
	assert.True(t, m.Get(ctx, "c1").IsEmpty())
}

func TestManager_SetZeroOnAbsentCreatesNoKey(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	m := newManager(t, store)

	got := m.SetQuantity(ctx, "c1", "X", 0)

	assert.False(t, got.Has("X"))
	assert.Zero(t, store.stored["c1"].Len())
}

func TestManager_StorageFailuresAreSwallowed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	store := newMockStore()
	store.loadErr = errors.New("connection refused")
	store.saveErr = errors.New("connection refused")
	m := newManager(t, store)

	got := m.Increase(ctx, "c1", "Butter", 2)

	assert.Equal(t, 2, got.Quantity("Butter"))
	assert.Equal(t, 2, m.Get(ctx, "c1").Quantity("Butter"))
	assert.Equal(t, 2, logs.FilterMessage("Cart storage failed").Len())
}

func TestManager_MalformedPayloadGivesEmptyCart(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	store.loadErr = errors.Wrap(ErrMalformed, "decode")
	m := newManager(t, store)

	assert.True(t, m.Get(ctx, "c1").IsEmpty())
}

func TestManager_CartsAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, newMockStore())

	m.Increase(ctx, "a", "Soup", 1)
	m.Increase(ctx, "b", "Milk", 1)

	assert.Equal(t, []string{"Soup"}, m.Get(ctx, "a").IDs())
	assert.Equal(t, []string{"Milk"}, m.Get(ctx, "b").IDs())
}

func TestManager_ConcurrentMutationsAreSerial(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	m := newManager(t, store)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				m.Increase(ctx, "shared", "Soup", 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, m.Get(ctx, "shared").Quantity("Soup"))
	assert.Equal(t, workers*perWorker, store.stored["shared"].Quantity("Soup"))
}

func TestManager_EmptyCartsAreNotCached(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, newMockStore())

	for i := range 100000 {
		m.Get(ctx, "visitor-"+strconv.Itoa(i))
	}
	m.Increase(ctx, "c1", "Soup", 1)
	m.Clear(ctx, "c1")
	m.SetQuantity(ctx, "c2", "Milk", 0)
	m.Decrease(ctx, "c3", "Bread", 1)

	assert.Zero(t, m.Cached())
}

func TestManager_ClearedCartIsReloaded(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	m := newManager(t, store)

	m.Increase(ctx, "c1", "Soup", 1)
	m.Clear(ctx, "c1")
	store.stored["c1"] = FromItems([]string{"Milk"}, map[string]int{"Milk": 1})

	assert.Equal(t, []string{"Milk"}, m.Get(ctx, "c1").IDs())
}

func TestManager_EvictIdle(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	m, err := NewManager(store, WithIdleTimeout(time.Hour))
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Increase(ctx, "old", "Soup", 1)
	now = now.Add(45 * time.Minute)
	m.Increase(ctx, "recent", "Milk", 1)
	require.Equal(t, 2, m.Cached())

	now = now.Add(30 * time.Minute)
	m.Evict()
	assert.Equal(t, 1, m.Cached())

	// Evicted carts come back from the store.
	assert.Equal(t, 1, m.Get(ctx, "old").Quantity("Soup"))
	assert.Equal(t, []string{"load", "save", "load", "save", "load"}, store.ops())

	// A cart that expired from the store is gone once evicted.
	delete(store.stored, "recent")
	now = now.Add(2 * time.Hour)
	m.Evict()
	assert.Zero(t, m.Cached())
	assert.True(t, m.Get(ctx, "recent").IsEmpty())
}

func TestManager_EvictWithoutIdleTimeout(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, newMockStore())
	m.now = func() time.Time { return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC) }

	m.Increase(ctx, "c1", "Soup", 1)
	m.Evict()

	assert.Equal(t, 1, m.Cached())
}

func TestManager_EvictSkipsCartsInUse(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(newMockStore(), WithIdleTimeout(time.Minute))
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	m.Increase(ctx, "c1", "Soup", 1)

	s := m.acquire("c1")
	now = now.Add(time.Hour)
	m.Evict()
	assert.Equal(t, 1, m.Cached())
	m.release("c1", s)

	now = now.Add(time.Hour)
	m.Evict()
	assert.Zero(t, m.Cached())
}

func TestManager_ConcurrentMutationsWithEviction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := newMockStore()
	m, err := NewManager(store, WithIdleTimeout(time.Nanosecond))
	require.NoError(t, err)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				m.Increase(ctx, "shared", "Soup", 1)
				m.Evict()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, m.Get(ctx, "shared").Quantity("Soup"))
	assert.Equal(t, workers*perWorker, store.stored["shared"].Quantity("Soup"))
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m, err := NewManager(newMockStore(), WithIdleTimeout(time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
