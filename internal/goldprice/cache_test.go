package goldprice

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/testutil"
)

func sampleQuote() *models.GoldQuote {
	return &models.GoldQuote{
		ID:        7,
		Provider:  "mock",
		Bid:       decimal.RequireFromString("64.3015"),
		Ask:       decimal.RequireFromString("64.6230"),
		Unit:      "g",
		Currency:  "EUR",
		FetchedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	if q, err := c.Get(ctx); q != nil || err != nil {
		t.Fatalf("Expected empty cache, got %v, %v", q, err)
	}

	if err := c.Set(ctx, sampleQuote(), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	q, err := c.Get(ctx)
	if err != nil || q == nil || q.ID != 7 {
		t.Fatalf("Expected cached quote, got %v, %v", q, err)
	}

	now = now.Add(time.Minute)
	if q, _ := c.Get(ctx); q != nil {
		t.Error("Expected quote to expire after the TTL")
	}
}

func TestRedisCache(t *testing.T) {
	addr, cleanup := testutil.SetupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	c := NewRedisCache(client)

	if q, err := c.Get(ctx); q != nil || err != nil {
		t.Fatalf("Expected miss, got %v, %v", q, err)
	}

	if err := c.Set(ctx, sampleQuote(), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	q, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if q == nil || !q.Bid.Equal(decimal.RequireFromString("64.3015")) || !q.FetchedAt.Equal(sampleQuote().FetchedAt) {
		t.Errorf("Unexpected cached quote: %+v", q)
	}

	ttl, err := client.TTL(ctx, latestCacheKey).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL within a minute, got %s", ttl)
	}
}
