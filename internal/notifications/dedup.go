package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator keeps instances sharing a breaker from announcing the same
// transition more than once.
type Deduplicator interface {
	// ShouldSend reports whether this caller is the first to claim the alert.
	ShouldSend(ctx context.Context, upstream string, kind NotificationType) bool
	// Clear releases a claim so the next alert of that kind goes out again.
	Clear(ctx context.Context, upstream string, kind NotificationType)
}

type InMemoryDeduplicator struct {
	mu   sync.Mutex
	sent map[string]bool
}

func NewInMemoryDeduplicator() *InMemoryDeduplicator {
	return &InMemoryDeduplicator{sent: make(map[string]bool)}
}

func (d *InMemoryDeduplicator) ShouldSend(ctx context.Context, upstream string, kind NotificationType) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := upstream + ":" + string(kind)
	if d.sent[key] {
		return false
	}
	d.sent[key] = true
	return true
}

func (d *InMemoryDeduplicator) Clear(ctx context.Context, upstream string, kind NotificationType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sent, upstream+":"+string(kind))
}

// RedisDeduplicator claims alerts with SETNX. A claim expires after ttl so a
// lost Clear cannot silence an upstream forever.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduplicatorWithClient(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, ttl: ttl}
}

func (d *RedisDeduplicator) key(upstream string, kind NotificationType) string {
	return fmt.Sprintf("solmate:alert:%s:%s", upstream, kind)
}

func (d *RedisDeduplicator) ShouldSend(ctx context.Context, upstream string, kind NotificationType) bool {
	acquired, err := d.client.SetNX(ctx, d.key(upstream, kind), time.Now().Unix(), d.ttl).Result()
	if err != nil {
		// Fail open: a duplicate alert beats a missing one.
		return true
	}
	return acquired
}

func (d *RedisDeduplicator) Clear(ctx context.Context, upstream string, kind NotificationType) {
	d.client.Del(ctx, d.key(upstream, kind))
}
