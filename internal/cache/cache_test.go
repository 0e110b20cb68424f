package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKey(t *testing.T) {
	a := Key("price", "So11111111111111111111111111111111111111112")
	b := Key("price", "So11111111111111111111111111111111111111112")
	c := Key("price", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	if a != b {
		t.Error("same inputs should produce same key")
	}
	if a == c {
		t.Error("different inputs should produce different keys")
	}
	if !strings.HasPrefix(a, "solmate:cache:price:") {
		t.Errorf("key = %s", a)
	}
	if Key("tps") == Key("price") {
		t.Error("endpoint should be part of the key")
	}
}

func TestInMemoryCache_SetAndGet(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte(`{"tps":2100}`), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := c.Get(ctx, "key1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != `{"tps":2100}` {
		t.Errorf("value = %s", got)
	}
}

func TestInMemoryCache_Miss(t *testing.T) {
	c := NewInMemoryCache()

	if _, ok := c.Get(context.Background(), "nonexistent"); ok {
		t.Error("expected cache miss")
	}
}

func TestInMemoryCache_Expiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewInMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "key1", []byte("v"), 10*time.Second)

	now = now.Add(9 * time.Second)
	if _, ok := c.Get(ctx, "key1"); !ok {
		t.Fatal("expected cache hit before expiration")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get(ctx, "key1"); ok {
		t.Error("expected cache miss at expiration")
	}

	c.Cleanup()
	if c.Len() != 0 {
		t.Errorf("Len() after cleanup = %d, want 0", c.Len())
	}
}

func TestRedisCache_SetAndGet(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	c := NewRedisCacheWithClient(redis.NewClient(opts))
	defer c.Close()

	ctx := context.Background()
	key := Key("test", time.Now().String())

	if err := c.Set(ctx, key, []byte("hello"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := c.Get(ctx, key)
	if !ok || string(got) != "hello" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
}
