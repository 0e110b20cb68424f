// Package ratelimit provides advisory per-client request limiting.
// It uses a fixed-window counter keyed by route and client address.
// Supports both in-memory (single instance) and Redis (distributed) backends.
package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// RateLimiter defines the interface for rate limiting backends.
// The request is counted before the decision, so denied requests also consume
// the window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Result is the outcome for one request and the values for the advisory headers.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Policy is one endpoint's budget.
type Policy struct {
	Max    int
	Window time.Duration
}

// DefaultPolicy applies to endpoints that declare no budget of their own.
var DefaultPolicy = Policy{Max: 8, Window: 30 * time.Second}

func newResult(count, limit int, resetAt time.Time) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// InMemoryRateLimiter keeps buckets in process memory. The bucket map is an LRU
// bounded by maxKeys; the least recently seen bucket is evicted first.
type InMemoryRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*list.Element
	lru     *list.List
	maxKeys int
	now     func() time.Time
}

type bucket struct {
	key         string
	windowStart time.Time
	window      time.Duration
	count       int
}

type Option func(*InMemoryRateLimiter)

func WithMaxKeys(n int) Option {
	return func(r *InMemoryRateLimiter) {
		if n > 0 {
			r.maxKeys = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *InMemoryRateLimiter) { r.now = now }
}

func NewInMemoryRateLimiter(opts ...Option) *InMemoryRateLimiter {
	r := &InMemoryRateLimiter{
		buckets: make(map[string]*list.Element),
		lru:     list.New(),
		maxKeys: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	var b *bucket
	if el, ok := r.buckets[key]; ok {
		b = el.Value.(*bucket)
		if now.Sub(b.windowStart) > window || b.window != window {
			b.windowStart = now
			b.window = window
			b.count = 0
		}
		r.lru.MoveToFront(el)
	} else {
		b = &bucket{key: key, windowStart: now, window: window}
		r.buckets[key] = r.lru.PushFront(b)
		r.evict()
	}

	b.count++
	return newResult(b.count, limit, b.windowStart.Add(window)), nil
}

func (r *InMemoryRateLimiter) evict() {
	for r.lru.Len() > r.maxKeys {
		oldest := r.lru.Back()
		r.lru.Remove(oldest)
		delete(r.buckets, oldest.Value.(*bucket).key)
	}
}

// Len reports the number of live buckets.
func (r *InMemoryRateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

// Cleanup drops buckets whose window has already ended.
func (r *InMemoryRateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for el := r.lru.Back(); el != nil; {
		prev := el.Prev()
		b := el.Value.(*bucket)
		if now.Sub(b.windowStart) > b.window {
			r.lru.Remove(el)
			delete(r.buckets, b.key)
		}
		el = prev
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (r *InMemoryRateLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Cleanup()
			}
		}
	}()
}
