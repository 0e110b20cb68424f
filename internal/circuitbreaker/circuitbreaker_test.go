package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felipepmaragno/solmate-api/internal/domain"
)

type transition struct {
	name     string
	from, to State
}

func newTestBreaker(cfg Config) (*InMemoryCircuitBreaker, *time.Time, *[]transition) {
	now := time.Unix(1_700_000_000, 0)
	var seen []transition
	cb := NewInMemory("jupiter", cfg, func(name string, from, to State) {
		seen = append(seen, transition{name, from, to})
	})
	cb.now = func() time.Time { return now }
	return cb, &now, &seen
}

func TestCircuitBreaker_StartsClosedState(t *testing.T) {
	cb, _, _ := newTestBreaker(DefaultConfig())

	if got := cb.State(context.Background()); got != StateClosed {
		t.Errorf("expected StateClosed, got %v", got)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	cb, _, seen := newTestBreaker(Config{FailureThreshold: 3, SuccessThreshold: 2, Timeout: time.Second})

	cb.RecordFailure(ctx)
	cb.RecordFailure(ctx)
	if cb.State(ctx) != StateClosed {
		t.Fatal("opened before threshold")
	}
	cb.RecordFailure(ctx)

	if cb.State(ctx) != StateOpen {
		t.Errorf("expected StateOpen, got %v", cb.State(ctx))
	}
	if err := cb.Allow(ctx); !errors.Is(err, domain.ErrCircuitBreakerOpen) {
		t.Errorf("Allow() = %v, want ErrCircuitBreakerOpen", err)
	}
	if len(*seen) != 1 || (*seen)[0] != (transition{"jupiter", StateClosed, StateOpen}) {
		t.Errorf("transitions = %v", *seen)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	cb, _, _ := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second})

	cb.RecordFailure(ctx)
	cb.RecordSuccess(ctx)
	cb.RecordFailure(ctx)

	if cb.State(ctx) != StateClosed {
		t.Errorf("non-consecutive failures should not open, got %v", cb.State(ctx))
	}
	if cb.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", cb.Failures())
	}
}

func TestCircuitBreaker_HalfOpenThenClosed(t *testing.T) {
	ctx := context.Background()
	cb, now, seen := newTestBreaker(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: 30 * time.Second})

	cb.RecordFailure(ctx)
	cb.RecordFailure(ctx)

	*now = now.Add(29 * time.Second)
	if err := cb.Allow(ctx); err == nil {
		t.Fatal("expected open before cool-down elapses")
	}

	*now = now.Add(time.Second)
	if err := cb.Allow(ctx); err != nil {
		t.Fatalf("expected trial call after cool-down, got %v", err)
	}
	if cb.State(ctx) != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen, got %v", cb.State(ctx))
	}

	cb.RecordSuccess(ctx)
	cb.RecordSuccess(ctx)

	if cb.State(ctx) != StateClosed {
		t.Errorf("expected StateClosed, got %v", cb.State(ctx))
	}

	want := []transition{
		{"jupiter", StateClosed, StateOpen},
		{"jupiter", StateOpen, StateHalfOpen},
		{"jupiter", StateHalfOpen, StateClosed},
	}
	if len(*seen) != len(want) {
		t.Fatalf("transitions = %v", *seen)
	}
	for i := range want {
		if (*seen)[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, (*seen)[i], want[i])
		}
	}
}

func TestCircuitBreaker_ReopensOnFailureInHalfOpen(t *testing.T) {
	ctx := context.Background()
	cb, now, _ := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second})

	cb.RecordFailure(ctx)
	*now = now.Add(time.Second)
	cb.Allow(ctx)
	cb.RecordFailure(ctx)

	if cb.State(ctx) != StateOpen {
		t.Errorf("expected StateOpen after failure in half-open, got %v", cb.State(ctx))
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("%d.String() = %s, want %s", s, s.String(), want)
		}
		if s != State(9) && parseState(want) != s {
			t.Errorf("parseState(%s) = %v", want, parseState(want))
		}
	}
}

func TestManager_GetCreatesBreaker(t *testing.T) {
	m := NewManager(DefaultConfig())

	cb1 := m.Get("jupiter")
	cb2 := m.Get("jupiter")
	if cb1 != cb2 {
		t.Error("expected same circuit breaker instance for same upstream")
	}
	if cb3 := m.Get("solana"); cb1 == cb3 {
		t.Error("expected different circuit breaker for different upstream")
	}

	states := m.States(context.Background())
	if len(states) != 2 || states["jupiter"] != "closed" {
		t.Errorf("States() = %v", states)
	}
}

func TestManager_PropagatesStateChange(t *testing.T) {
	var got []string
	m := NewManager(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute},
		WithStateChange(func(name string, from, to State) { got = append(got, name+":"+to.String()) }))

	m.Get("solana").RecordFailure(context.Background())

	if len(got) != 1 || got[0] != "solana:open" {
		t.Errorf("state changes = %v", got)
	}
}
