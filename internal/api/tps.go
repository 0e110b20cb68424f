package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/felipepmaragno/solmate-api/internal/cache"
	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
	"github.com/felipepmaragno/solmate-api/internal/logging"
	"github.com/felipepmaragno/solmate-api/internal/provider/solana"
)

const (
	tpsCacheTTL     = 10 * time.Second
	tpsCacheControl = "public, max-age=10, s-maxage=10"
	tpsUpstream     = "solana"

	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

var tpsLog = logging.NewEndpoint("tps")

type tpsError struct {
	Error string `json:"error"`
	TPS   *int64 `json:"tps"`
}

func writeTPSError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Cache-Control", cacheNoStore)
	writeJSON(w, status, tpsError{Error: msg})
}

func (h *Handler) handleTPS(w http.ResponseWriter, r *http.Request, _ any) {
	ctx := r.Context()

	if h.tps == nil || h.cfg.RPCURL() == "" {
		tpsLog.Warn(ctx, "rpc url not configured")
		writeTPSError(w, http.StatusServiceUnavailable, "TPS service not configured")
		return
	}

	key := cache.Key("tps", h.cfg.SolanaNetwork)
	if data, ok := h.cacheGet(ctx, "tps", key); ok {
		w.Header().Set("Cache-Control", tpsCacheControl)
		w.Header().Set("X-Cache", "HIT")
		writeRaw(w, http.StatusOK, data)
		return
	}

	cb := h.breaker(tpsUpstream)
	if err := allowed(ctx, cb); err != nil {
		tpsLog.Warn(ctx, "rpc circuit open")
		writeTPSError(w, http.StatusServiceUnavailable, "TPS service temporarily unavailable")
		return
	}

	tpsLog.Start(ctx, "performance sample lookup")

	samples, err := h.tps.RecentPerformanceSamples(ctx, 1)
	record(ctx, cb, err)
	if err != nil {
		status, msg := tpsFailure(err)
		tpsLog.Error(ctx, "performance sample lookup failed", "kind", failureKind(err), "error", err.Error())
		writeTPSError(w, status, msg)
		return
	}

	reply := domain.TPSReply{
		Timestamp: h.now().UTC().Format(isoMillis),
		Network:   h.cfg.SolanaNetwork,
	}
	switch {
	case len(samples) == 0:
		tpsLog.Warn(ctx, "rpc returned no performance samples")
	default:
		if tps, ok := solana.TPS(samples[0]); ok {
			reply.TPS = &tps
		} else {
			tpsLog.Warn(ctx, "discarding implausible tps sample",
				"transactions", samples[0].NumTransactions,
				"period_secs", samples[0].SamplePeriodSecs)
		}
	}

	data, err := json.Marshal(reply)
	if err != nil {
		tpsLog.Error(ctx, "encode tps reply", "error", err.Error())
		writeTPSError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if reply.TPS != nil {
		h.cacheSet(ctx, tpsLog, key, data, tpsCacheTTL)
	}

	tpsLog.OK(ctx, "performance sample lookup done", "network", reply.Network)
	w.Header().Set("Cache-Control", tpsCacheControl)
	w.Header().Set("X-Cache", "MISS")
	writeRaw(w, http.StatusOK, data)
}

func tpsFailure(err error) (int, string) {
	if errors.Is(err, domain.ErrNotConfigured) {
		return http.StatusServiceUnavailable, "TPS service not configured"
	}
	if errors.Is(err, domain.ErrBadPayload) {
		return http.StatusBadGateway, "Invalid response from RPC"
	}
	if ue, ok := httputil.AsError(err); ok {
		switch ue.Kind {
		case httputil.KindTimeout:
			return http.StatusGatewayTimeout, "TPS service timeout"
		case httputil.KindHTTP:
			return http.StatusBadGateway, "RPC upstream error"
		default:
			return http.StatusServiceUnavailable, "TPS service unavailable"
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}
