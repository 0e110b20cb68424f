package circuitbreaker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/solmate-api/internal/domain"
)

func newRedisBreaker(t *testing.T, name string, cfg Config, onChange StateChangeFunc) *RedisCircuitBreaker {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping Redis circuit breaker tests")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)

	cb := NewRedisWithClient(client, name, cfg, onChange)
	cb.Reset(context.Background())
	t.Cleanup(func() {
		cb.Reset(context.Background())
		client.Close()
	})
	return cb
}

func TestRedisCircuitBreaker_OpensAndReports(t *testing.T) {
	ctx := context.Background()
	var got []State
	cb := newRedisBreaker(t, "test-open", Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute},
		func(name string, from, to State) { got = append(got, to) })

	cb.RecordFailure(ctx)
	cb.RecordFailure(ctx)

	if cb.State(ctx) != StateOpen {
		t.Errorf("expected StateOpen, got %v", cb.State(ctx))
	}
	if err := cb.Allow(ctx); !errors.Is(err, domain.ErrCircuitBreakerOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitBreakerOpen", err)
	}
	if len(got) != 1 || got[0] != StateOpen {
		t.Errorf("transitions = %v", got)
	}
}

func TestRedisCircuitBreaker_HalfOpenThenClosed(t *testing.T) {
	ctx := context.Background()
	cb := newRedisBreaker(t, "test-recover", Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second}, nil)

	cb.RecordFailure(ctx)
	time.Sleep(2100 * time.Millisecond)

	if err := cb.Allow(ctx); err != nil {
		t.Fatalf("expected trial call after cool-down, got %v", err)
	}
	cb.RecordSuccess(ctx)

	if cb.State(ctx) != StateClosed {
		t.Errorf("expected StateClosed, got %v", cb.State(ctx))
	}
}
