package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/felipepmaragno/solmate-api/internal/cache"
	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
	"github.com/felipepmaragno/solmate-api/internal/logging"
	"github.com/felipepmaragno/solmate-api/internal/metrics"
	"github.com/felipepmaragno/solmate-api/internal/validate"
)

const (
	priceCacheTTL     = 20 * time.Second
	priceCacheControl = "public, max-age=20, s-maxage=20"
	priceUpstream     = "jupiter"
)

var priceLog = logging.NewEndpoint("price")

func (h *Handler) handlePrice(w http.ResponseWriter, r *http.Request, _ any) {
	ctx := r.Context()

	res := validate.Price(r.URL.Query().Get("ids"), validate.DefaultLimits())
	if !res.Valid {
		priceLog.Warn(ctx, "invalid ids, using default token", "errors", strings.Join(res.Errors, "; "))
	}
	ids := res.Data.IDs

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	key := cache.Key("price", sorted...)

	if data, ok := h.cacheGet(ctx, "price", key); ok {
		w.Header().Set("Cache-Control", priceCacheControl)
		w.Header().Set("X-Cache", "HIT")
		writeRaw(w, http.StatusOK, data)
		return
	}

	cb := h.breaker(priceUpstream)
	if err := allowed(ctx, cb); err != nil {
		priceLog.Warn(ctx, "price upstream circuit open")
		writePriceError(w, http.StatusServiceUnavailable, "Price service temporarily unavailable")
		return
	}

	priceLog.Start(ctx, "price lookup", "ids", len(ids))

	reply, err := h.prices.Prices(ctx, ids)
	record(ctx, cb, err)
	if err != nil {
		status, msg := priceFailure(err)
		args := []any{"kind", failureKind(err), "error", err.Error()}
		if ue, ok := httputil.AsError(err); ok && ue.Kind == httputil.KindHTTP {
			args = append(args, "status", ue.Status, "body", logging.Snippet(ue.Body))
		}
		priceLog.Error(ctx, "price lookup failed", args...)
		writePriceError(w, status, msg)
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		priceLog.Error(ctx, "encode price reply", "error", err.Error())
		writePriceError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.cacheSet(ctx, priceLog, key, data, priceCacheTTL)

	priceLog.OK(ctx, "price lookup done", "ids", len(ids))
	w.Header().Set("Cache-Control", priceCacheControl)
	w.Header().Set("X-Cache", "MISS")
	writeRaw(w, http.StatusOK, data)
}

func priceFailure(err error) (int, string) {
	if ue, ok := httputil.AsError(err); ok {
		switch {
		case ue.Kind == httputil.KindTimeout:
			return http.StatusGatewayTimeout, "Price service timeout"
		case ue.Kind == httputil.KindHTTP && ue.Status == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, "Price service is busy, try again shortly"
		default:
			return http.StatusServiceUnavailable, "Price service unavailable"
		}
	}
	if errors.Is(err, domain.ErrBadPayload) {
		return http.StatusBadGateway, "Invalid response from price service"
	}
	return http.StatusInternalServerError, "Internal server error"
}

func writePriceError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Cache-Control", cacheNoStore)
	writeError(w, status, msg)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// cacheGet and cacheSet treat a missing cache as a permanent miss. Writes are
// detached from the request so a client leaving early still fills the cache.
func (h *Handler) cacheGet(ctx context.Context, endpoint, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	data, ok := h.cache.Get(ctx, key)
	if ok {
		metrics.RecordCacheHit(endpoint)
	} else {
		metrics.RecordCacheMiss(endpoint)
	}
	return data, ok
}

func (h *Handler) cacheSet(ctx context.Context, log *logging.Endpoint, key string, data []byte, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(detachedContext(ctx), key, data, ttl); err != nil {
		log.Warn(ctx, "cache write failed", "error", err.Error())
	}
}
