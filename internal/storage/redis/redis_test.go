//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-pricing/internal/domain/cart"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate redis: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := NewClient(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCartStore(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := NewCartStore(client)

	_, err := store.Load(ctx, "c1")
	assert.True(t, errors.Is(err, cart.ErrNotFound))

	st := cart.Increase(cart.Increase(cart.Empty(), "Butter", 4), "Soup", 3)
	require.NoError(t, store.Save(ctx, "c1", st))

	raw, err := client.Get(ctx, "cart_v1:c1").Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":{"Butter":4,"Soup":3}}`, raw)

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, st.Equal(got))

	require.NoError(t, store.Clear(ctx, "c1"))
	exists, err := client.Exists(ctx, "cart_v1:c1").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestCartStore_PrefixAndTTL(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := NewCartStore(client, WithKeyPrefix("kart"), WithTTL(time.Hour))

	require.NoError(t, store.Save(ctx, "c2", cart.Increase(cart.Empty(), "Milk", 1)))

	ttl, err := client.TTL(ctx, "kart:c2").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestCartStore_MalformedPayload(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := NewCartStore(client)

	require.NoError(t, client.Set(ctx, "cart_v1:bad", "not json", 0).Err())

	_, err := store.Load(ctx, "bad")
	assert.True(t, errors.Is(err, cart.ErrMalformed))
}
