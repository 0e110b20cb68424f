package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/logging"
)

const healthCheckTimeout = 2 * time.Second

var healthLog = logging.NewEndpoint("health")

// HealthChecker probes one advisory dependency.
type HealthChecker interface {
	Check(ctx context.Context) error
	Name() string
}

type RedisHealthChecker struct {
	client *redis.Client
}

func NewRedisHealthCheckerWithClient(client *redis.Client) *RedisHealthChecker {
	return &RedisHealthChecker{client: client}
}

func (c *RedisHealthChecker) Name() string {
	return "redis"
}

func (c *RedisHealthChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// runHealthChecks executes all health checks concurrently.
func runHealthChecks(ctx context.Context, checkers []HealthChecker) map[string]domain.CheckResult {
	results := make(map[string]domain.CheckResult, len(checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)

			result := domain.CheckResult{
				Status:   "ok",
				Duration: time.Since(start).String(),
			}
			if err != nil {
				result.Status = "error"
				result.Error = err.Error()
			}

			mu.Lock()
			results[c.Name()] = result
			mu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

// handleHealth reports prerequisites, not reachability: ok stays true while
// the process can answer. Dependency checks are informational.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request, _ any) {
	ctx := r.Context()
	w.Header().Set("Cache-Control", cacheNoStore)

	defer func() {
		if p := recover(); p != nil {
			healthLog.Error(ctx, "health assembly failed", "panic", fmt.Sprint(p))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": fmt.Sprint(p)})
		}
	}()

	c := h.cfg
	hasRPC := c.RPCURL() != ""
	reply := domain.HealthReply{
		OK:   true,
		Time: h.now().UnixMilli(),
		Environment: domain.HealthEnvironment{
			HasChatKey: c.HasChatKey(),
			HasRPCURL:  hasRPC,
			Region:     c.Region,
			Commit:     c.CommitSHA,
			Env:        c.Environment,
		},
		Services: domain.HealthServices{
			Chat:  c.HasChatKey(),
			TTS:   c.HasChatKey(),
			Price: true,
			TPS:   hasRPC,
		},
	}

	if len(h.checkers) > 0 {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		reply.Checks = runHealthChecks(checkCtx, h.checkers)
		cancel()
	}
	if h.breakers != nil {
		if states := h.breakers.States(ctx); len(states) > 0 {
			reply.Breakers = states
		}
	}

	writeJSON(w, http.StatusOK, reply)
}
