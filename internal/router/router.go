// Package router picks the chat model for a request and applies the single
// quota retry.
package router

import (
	"context"
	"net/http"

	"github.com/felipepmaragno/solmate-api/internal/config"
	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
	"github.com/felipepmaragno/solmate-api/internal/logging"
	"github.com/felipepmaragno/solmate-api/internal/metrics"
)

type Provider interface {
	ChatCompletion(ctx context.Context, model string, req domain.ChatRequest) (*domain.ChatReply, error)
}

type Router struct {
	provider   Provider
	envDefault string
	fallback   string
	log        *logging.Endpoint
}

// New builds a router. envDefault may be empty; fallback empty disables the
// quota retry.
func New(provider Provider, envDefault, fallback string) *Router {
	return &Router{
		provider:   provider,
		envDefault: envDefault,
		fallback:   fallback,
		log:        logging.NewEndpoint("chat"),
	}
}

// Primary resolves requested → env default → baked-in default.
func (r *Router) Primary(requested string) string {
	if requested != "" {
		return requested
	}
	if r.envDefault != "" {
		return r.envDefault
	}
	return config.DefaultChatModel
}

func (r *Router) Fallback() string {
	return r.fallback
}

// Complete runs the request against the primary model. A 429 is retried once
// on the fallback model; every other failure, and a second 429, is returned
// as is.
func (r *Router) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	model := r.Primary(req.Model)

	reply, err := r.provider.ChatCompletion(ctx, model, req)
	if err == nil || r.fallback == "" || !httputil.IsStatus(err, http.StatusTooManyRequests) {
		return reply, err
	}

	metrics.RecordChatQuotaRetry()
	r.log.Warn(ctx, "quota exceeded, retrying on fallback model", "model", model, "fallback", r.fallback)

	return r.provider.ChatCompletion(ctx, r.fallback, req)
}
