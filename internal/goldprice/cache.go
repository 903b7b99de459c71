package goldprice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safar/gold-ledger/internal/models"
)

const latestCacheKey = "gold:latest"

// QuoteCache holds the latest quote. Get returns (nil, nil) on a miss.
type QuoteCache interface {
	Get(ctx context.Context) (*models.GoldQuote, error)
	Set(ctx context.Context, quote *models.GoldQuote, ttl time.Duration) error
}

type MemoryCache struct {
	mu      sync.Mutex
	quote   *models.GoldQuote
	expires time.Time
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context) (*models.GoldQuote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quote == nil || !c.now().Before(c.expires) {
		return nil, nil
	}
	q := *c.quote
	return &q, nil
}

func (c *MemoryCache) Set(ctx context.Context, quote *models.GoldQuote, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := *quote
	c.quote = &q
	c.expires = c.now().Add(ttl)
	return nil
}

// RedisCache shares the latest quote across replicas.
type RedisCache struct {
	client redis.UniversalClient
	key    string
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client, key: latestCacheKey}
}

func (c *RedisCache) Get(ctx context.Context) (*models.GoldQuote, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", c.key, err)
	}

	var q models.GoldQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode cached quote: %w", err)
	}
	return &q, nil
}

func (c *RedisCache) Set(ctx context.Context, quote *models.GoldQuote, ttl time.Duration) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	return nil
}
