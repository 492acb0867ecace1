package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/catalog"
	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/storage/memory"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
	"github.com/xenking/kart-pricing/internal/storage/redis"
	"github.com/xenking/kart-pricing/pkg/health"
)

// deps holds the backends selected by Config. Close releases them.
type deps struct {
	pool     *pgxpool.Pool
	redis    *goredis.Client
	products product.Repository
	carts    cart.Store
}

func openDeps(ctx context.Context, lg *zap.Logger, cfg *Config) (_ *deps, rerr error) {
	d := &deps{}
	defer func() {
		if rerr != nil {
			d.Close()
		}
	}()

	if cfg.NeedsPostgres() {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		d.pool = pool
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
	}

	switch cfg.Catalog.Source {
	case CatalogPostgres:
		d.products = postgres.NewProductRepository(d.pool)
	default:
		products := catalog.Default()
		if cfg.Catalog.File != "" {
			var err error
			if products, err = catalog.Load(cfg.Catalog.File); err != nil {
				return nil, errors.Wrap(err, "load catalog")
			}
		}
		d.products = catalog.NewStatic(products)
	}

	switch cfg.Store.Backend {
	case StoreRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		d.redis = client
		d.carts = redis.NewCartStore(client,
			redis.WithKeyPrefix(cfg.Store.KeyPrefix),
			redis.WithTTL(cfg.Store.TTL),
		)
	case StorePostgres:
		d.carts = postgres.NewCartStore(d.pool)
	default:
		d.carts = memory.NewCartStore()
	}

	lg.Info("Backends ready",
		zap.String("catalog", cfg.Catalog.Source),
		zap.String("store", cfg.Store.Backend),
	)
	return d, nil
}

// addChecks registers readiness checks for the opened backends.
func (d *deps) addChecks(h *health.Health) {
	if d.pool != nil {
		h.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(d.pool))
	}
	if d.redis != nil {
		h.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return d.redis.Ping(ctx).Err()
		})
	}
}

func (d *deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}
