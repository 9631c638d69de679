package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/entity"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache holds the latest quote per symbol. Implementations must be safe for
// concurrent use; lookup failures degrade to a miss, never an error.
type Cache interface {
	Get(ctx context.Context, symbol string) (entity.Quote, bool)
	Set(ctx context.Context, quote entity.Quote)
	Clear(ctx context.Context)
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entity.Quote
	ttl     time.Duration
	clock   clock
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return newMemoryCache(ttl, realClock{})
}

func newMemoryCache(ttl time.Duration, clk clock) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entity.Quote),
		ttl:     ttl,
		clock:   clk,
	}
}

func (c *MemoryCache) Get(_ context.Context, symbol string) (entity.Quote, bool) {
	c.mu.RLock()
	cached, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok {
		return entity.Quote{}, false
	}

	if c.clock.Now().Sub(cached.RetrievedAt) >= c.ttl {
		return entity.Quote{}, false
	}

	return cached, true
}

func (c *MemoryCache) Set(_ context.Context, quote entity.Quote) {
	c.mu.Lock()
	c.entries[quote.Symbol] = quote
	c.mu.Unlock()
}

func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]entity.Quote)
	c.mu.Unlock()
}

const redisQuoteKeyPrefix = "quote:"

// RedisCache shares the quote cache across gateway instances; freshness is
// enforced by the server-side TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cacheDSN string, ttl time.Duration) (*RedisCache, error) {
	if cacheDSN == "" {
		return nil, fmt.Errorf("redis cache_dsn is required")
	}

	options, err := redis.ParseURL(cacheDSN)
	if err != nil {
		return nil, fmt.Errorf("parse redis cache_dsn: %w", err)
	}

	return &RedisCache{client: redis.NewClient(options), ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, symbol string) (entity.Quote, bool) {
	raw, err := c.client.Get(ctx, redisQuoteKeyPrefix+symbol).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.Warnf("quote cache read failed for %s: %v", symbol, err)
		}
		return entity.Quote{}, false
	}

	var quote entity.Quote
	if err := json.Unmarshal([]byte(raw), &quote); err != nil {
		logrus.Warnf("quote cache payload invalid for %s: %v", symbol, err)
		return entity.Quote{}, false
	}

	return quote, true
}

func (c *RedisCache) Set(ctx context.Context, quote entity.Quote) {
	payload, err := json.Marshal(quote)
	if err != nil {
		logrus.Warnf("quote cache marshal failed for %s: %v", quote.Symbol, err)
		return
	}

	if err := c.client.Set(ctx, redisQuoteKeyPrefix+quote.Symbol, payload, c.ttl).Err(); err != nil {
		logrus.Warnf("quote cache write failed for %s: %v", quote.Symbol, err)
	}
}

func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, redisQuoteKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logrus.Warnf("quote cache delete failed for %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		logrus.Warnf("quote cache clear failed: %v", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
