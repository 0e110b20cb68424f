package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/felipepmaragno/solmate-api/internal/circuitbreaker"
	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
)

// upstreamUnhealthy reports whether err says the upstream itself is failing.
// Client-side errors such as a 429 quota answer are not held against it.
func upstreamUnhealthy(err error) bool {
	if errors.Is(err, domain.ErrBadPayload) || errors.Is(err, domain.ErrEmptyAudio) ||
		errors.Is(err, domain.ErrAudioTooLarge) {
		return true
	}
	ue, ok := httputil.AsError(err)
	if !ok {
		return false
	}
	return ue.Kind != httputil.KindHTTP || ue.Status >= http.StatusInternalServerError
}

// record feeds one outcome to cb. Calls cut short by the client going away
// say nothing about the upstream and are ignored.
func record(ctx context.Context, cb circuitbreaker.CircuitBreaker, err error) {
	if cb == nil || ctx.Err() != nil {
		return
	}
	switch {
	case err == nil:
		cb.RecordSuccess(ctx)
	case upstreamUnhealthy(err):
		cb.RecordFailure(ctx)
	}
}

func allowed(ctx context.Context, cb circuitbreaker.CircuitBreaker) error {
	if cb == nil {
		return nil
	}
	return cb.Allow(ctx)
}

// failureKind names an upstream failure for logs and metric labels.
func failureKind(err error) string {
	if ue, ok := httputil.AsError(err); ok {
		return string(ue.Kind)
	}
	switch {
	case errors.Is(err, domain.ErrBadPayload):
		return "bad-payload"
	case errors.Is(err, domain.ErrCircuitBreakerOpen):
		return "circuit-open"
	case errors.Is(err, domain.ErrMissingKey):
		return "missing-key"
	default:
		return "internal"
	}
}
