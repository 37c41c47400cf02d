package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/coupon"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/quote"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
)

// Dependencies enumerates the services shared by the API entrypoint.
type Dependencies struct {
	Redis   *redis.Client
	Coupons *coupon.Catalog
	Limiter ratelimit.Allower
	Quotes  *quote.Service
}

// Options toggles optional instrumentation while wiring dependencies.
type Options struct {
	RedisTracing bool
	RedisMetrics bool
}

// Build wires the coupon catalog, optional Redis client, rate limiter and quote service.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	coupons, err := coupon.LoadCatalog(cfg.CouponCatalogPath)
	if err != nil {
		return nil, err
	}
	client, err := OpenRedis(ctx, cfg.RedisURL, opts)
	if err != nil {
		return nil, err
	}
	if client == nil {
		logger.Warn().Msg("REDIS_URL not set; quote storage and idempotency disabled")
	}
	return &Dependencies{
		Redis:   client,
		Coupons: coupons,
		Limiter: NewLimiter(client),
		Quotes:  NewQuoteService(cfg, coupons, client, logger),
	}, nil
}

// Close releases the Redis client when one was opened.
func (d *Dependencies) Close() error {
	if d == nil || d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}

// OpenRedis connects to url and verifies the connection. An empty url yields a nil client.
func OpenRedis(ctx context.Context, url string, opts Options) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	var instrErr error
	if opts.RedisTracing {
		instrErr = errors.Join(instrErr, redisotel.InstrumentTracing(client))
	}
	if opts.RedisMetrics {
		instrErr = errors.Join(instrErr, redisotel.InstrumentMetrics(client))
	}
	if instrErr != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis: %w", instrErr)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLimiter prefers the shared Redis sliding window and falls back to an in-process store.
func NewLimiter(client *redis.Client) ratelimit.Allower {
	if client != nil {
		return ratelimit.SlidingWindow{Client: client, Prefix: "ratelimit:"}
	}
	return ratelimit.NewMemoryLimiter("ratelimit")
}

// NewQuoteService builds the quote service from configuration. A nil client disables quote storage.
func NewQuoteService(cfg *config.Config, coupons *coupon.Catalog, client *redis.Client, logger zerolog.Logger) *quote.Service {
	svcLogger := logger.With().Str("component", "quote").Logger()
	return &quote.Service{
		Coupons:           coupons,
		Delivery:          DeliveryPolicy(cfg),
		Currency:          cfg.CurrencyCode,
		Store:             quote.NewStore(client, cfg.QuoteTTL),
		Logger:            &svcLogger,
		CouponConcurrency: cfg.QuoteCouponParallel,
	}
}

// DeliveryPolicy converts the configured store policy into the pricing engine's form.
func DeliveryPolicy(cfg *config.Config) pricing.DeliveryPolicy {
	policy := pricing.DeliveryPolicy{Fee: cfg.DeliveryFee}
	if cfg.FreeShippingThreshold != nil {
		threshold := *cfg.FreeShippingThreshold
		policy.FreeShippingThreshold = &threshold
	}
	return policy
}
