// Package circuitbreaker stops calling an upstream that keeps failing.
//
// States:
//   - Closed: calls pass through, consecutive failures are counted
//   - Open: calls fail fast with domain.ErrCircuitBreakerOpen until the cool-down elapses
//   - Half-Open: calls pass; enough successes close the circuit, one failure reopens it
//
// Implementations:
//   - InMemoryCircuitBreaker: per-process state behind a mutex
//   - RedisCircuitBreaker: state shared by every instance through Lua scripts
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/solmate-api/internal/domain"
)

type CircuitBreaker interface {
	// Allow returns domain.ErrCircuitBreakerOpen while the circuit is open.
	Allow(ctx context.Context) error
	RecordSuccess(ctx context.Context)
	RecordFailure(ctx context.Context)
	State(ctx context.Context) State
}

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func parseState(s string) State {
	switch s {
	case "open":
		return StateOpen
	case "half-open":
		return StateHalfOpen
	default:
		return StateClosed
	}
}

type Config struct {
	FailureThreshold int
	SuccessThreshold int
	// Timeout is the open-state cool-down before a trial call is let through.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// StateChangeFunc observes transitions. It runs outside the breaker lock.
type StateChangeFunc func(name string, from, to State)

type InMemoryCircuitBreaker struct {
	mu          sync.Mutex
	name        string
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	config      Config
	onChange    StateChangeFunc
	now         func() time.Time
}

func NewInMemory(name string, cfg Config, onChange StateChangeFunc) *InMemoryCircuitBreaker {
	return &InMemoryCircuitBreaker{
		name:     name,
		state:    StateClosed,
		config:   cfg,
		onChange: onChange,
		now:      time.Now,
	}
}

func (cb *InMemoryCircuitBreaker) Allow(ctx context.Context) error {
	cb.mu.Lock()
	from := cb.state
	if from == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.config.Timeout {
		cb.state = StateHalfOpen
		cb.successes = 0
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	if to == StateOpen {
		return domain.ErrCircuitBreakerOpen
	}
	return nil
}

func (cb *InMemoryCircuitBreaker) RecordSuccess(ctx context.Context) {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *InMemoryCircuitBreaker) RecordFailure(ctx context.Context) {
	cb.mu.Lock()
	from := cb.state
	cb.lastFailure = cb.now()
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.successes = 0
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

func (cb *InMemoryCircuitBreaker) State(ctx context.Context) State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *InMemoryCircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *InMemoryCircuitBreaker) notify(from, to State) {
	if from != to && cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}

// Manager hands out one breaker per upstream name.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]CircuitBreaker
	config   Config
	onChange StateChangeFunc
	redis    *redis.Client
}

type ManagerOption func(*Manager)

// WithRedisClient shares breaker state across instances through client.
func WithRedisClient(client *redis.Client) ManagerOption {
	return func(m *Manager) { m.redis = client }
}

func WithStateChange(fn StateChangeFunc) ManagerOption {
	return func(m *Manager) { m.onChange = fn }
}

func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		breakers: make(map[string]CircuitBreaker),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the breaker for name, creating it on first use.
func (m *Manager) Get(name string) CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	if m.redis != nil {
		cb = NewRedisWithClient(m.redis, name, m.config, m.onChange)
	} else {
		cb = NewInMemory(name, m.config, m.onChange)
	}
	m.breakers[name] = cb
	return cb
}

// States snapshots every breaker created so far.
func (m *Manager) States(ctx context.Context) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]string, len(m.breakers))
	for name, cb := range m.breakers {
		states[name] = cb.State(ctx).String()
	}
	return states
}
