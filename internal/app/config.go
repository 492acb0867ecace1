package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Catalog sources.
const (
	CatalogStatic   = "static"
	CatalogPostgres = "postgres"
)

// Cart store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis connection URL (KART_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to product image paths" flag:"image-base-url"`
	Catalog      CatalogConfig
	Store        StoreConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CatalogConfig selects where products come from.
type CatalogConfig struct {
	Source string `default:"static" usage:"Product catalog source: static or postgres"`
	// File replaces the built-in products for the static source.
	File string `default:"" usage:"JSON or .json.gz catalog file for the static source"`
}

// StoreConfig selects where carts are persisted.
type StoreConfig struct {
	Backend   string        `default:"memory" usage:"Cart store: memory, redis or postgres"`
	KeyPrefix string        `default:"cart_v1" usage:"Redis key prefix for carts"`
	TTL       time.Duration `default:"0" usage:"Redis cart expiry, 0 keeps carts forever"`
	// IdleTimeout drops carts from the in-process cache after this long
	// without access. They are restored from the store on next use.
	IdleTimeout time.Duration `default:"30m" usage:"Evict carts idle for this long from memory, 0 keeps them"`
}

// CacheIdle is the idle timeout for cached carts. It never exceeds TTL so a
// cart expired in the store does not outlive it in memory.
func (c StoreConfig) CacheIdle() time.Duration {
	if c.TTL > 0 && (c.IdleTimeout <= 0 || c.TTL < c.IdleTimeout) {
		return c.TTL
	}
	return c.IdleTimeout
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env (when present), then environment variables, flags and
// YAML config files, and applies platform defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) such as DATABASE_URL, REDIS_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// NeedsPostgres reports whether any component uses PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.Catalog.Source == CatalogPostgres || c.Store.Backend == StorePostgres
}

// Validate checks option values and their dependencies.
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case CatalogStatic, CatalogPostgres:
	default:
		return errors.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	switch c.Store.Backend {
	case StoreMemory, StorePostgres:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("redis URL is required for the redis store: set KART_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.NeedsPostgres() && c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if c.Store.TTL < 0 {
		return errors.Errorf("negative store TTL %s", c.Store.TTL)
	}
	if c.Store.IdleTimeout < 0 {
		return errors.Errorf("negative store idle timeout %s", c.Store.IdleTimeout)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}
