//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-pricing/internal/catalog"
	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/product"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port())
	pool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// Second run must be a no-op.
	if err := RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations rerun: %v", err)
	}

	return m.Run()
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(pool)

	require.NoError(t, repo.Upsert(ctx, catalog.Default()...))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "Bread", list[0].ID)
	assert.Equal(t, "Cheese", list[4].ID)

	soup, err := repo.GetByID(ctx, "Soup")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.65").Equal(soup.Price), "price %s", soup.Price)
	assert.Equal(t, "Hearty vegetable soup.", soup.Description)

	_, err = repo.GetByID(ctx, "Caviar")
	assert.True(t, errors.Is(err, product.ErrNotFound))

	found, err := repo.GetByIDs(ctx, []string{"Milk", "Caviar", "Bread"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Milk", found[0].ID)
	assert.Equal(t, "Bread", found[1].ID)
}

func TestProductRepository_UpsertUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(pool)

	require.NoError(t, repo.Upsert(ctx, product.Product{
		ID:    "Jam",
		Name:  "Jam",
		Price: decimal.RequireFromString("1.99"),
	}))
	require.NoError(t, repo.Upsert(ctx, product.Product{
		ID:    "Jam",
		Name:  "Strawberry Jam",
		Price: decimal.RequireFromString("2.49"),
	}))

	jam, err := repo.GetByID(ctx, "Jam")
	require.NoError(t, err)
	assert.Equal(t, "Strawberry Jam", jam.Name)
	assert.True(t, decimal.RequireFromString("2.49").Equal(jam.Price))
}

func TestCartStore(t *testing.T) {
	ctx := context.Background()
	store := NewCartStore(pool)

	_, err := store.Load(ctx, "missing")
	assert.True(t, errors.Is(err, cart.ErrNotFound))

	st := cart.Empty()
	for _, id := range []string{"Soup", "Bread", "Milk"} {
		st = cart.Increase(st, id, 2)
	}
	require.NoError(t, store.Save(ctx, "c1", st))

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, st.Equal(got), "order and quantities survive storage")

	st = cart.SetQuantity(st, "Soup", 0)
	require.NoError(t, store.Save(ctx, "c1", st))
	got, err = store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bread", "Milk"}, got.IDs())

	require.NoError(t, store.Clear(ctx, "c1"))
	require.NoError(t, store.Clear(ctx, "c1"))
	_, err = store.Load(ctx, "c1")
	assert.True(t, errors.Is(err, cart.ErrNotFound))
}

func TestCartStore_MalformedPayload(t *testing.T) {
	ctx := context.Background()
	store := NewCartStore(pool)

	_, err := pool.Exec(ctx, `INSERT INTO carts (id, payload) VALUES ($1, $2)`, "broken", `{"items":[1]}`)
	require.NoError(t, err)

	_, err = store.Load(ctx, "broken")
	assert.True(t, errors.Is(err, cart.ErrMalformed))
}
