package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felipepmaragno/solmate-api/internal/logging"
	"github.com/felipepmaragno/solmate-api/internal/metrics"
	"github.com/felipepmaragno/solmate-api/internal/ratelimit"
	"github.com/felipepmaragno/solmate-api/internal/telemetry"
)

// route declares one endpoint for the envelope. Handlers receive the decoded
// JSON body for POST routes and nil otherwise.
type route struct {
	name    string
	methods []string
	policy  ratelimit.Policy
	handle  func(w http.ResponseWriter, r *http.Request, body any)
}

// statusRecorder remembers the status for metrics and whether the header has
// gone out, which decides how a panic can still be answered.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func setCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 128 {
		return id
	}
	return uuid.New().String()
}

// wrap runs every request through the same steps: CORS, request context,
// preflight, rate limit, method gate, body cap and JSON parse.
func (h *Handler) wrap(rt route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		setCORS(rec, r)
		id := requestID(r)
		rec.Header().Set("X-Request-ID", id)

		ctx := logging.WithRequestInfo(r.Context(), logging.RequestInfo{
			RequestID: id,
			Route:     rt.name,
			Method:    r.Method,
			IP:        ratelimit.ClientIP(r),
			UserAgent: r.UserAgent(),
			Region:    h.cfg.Region,
			Commit:    h.cfg.CommitSHA,
		})
		ctx, span := telemetry.StartSpan(ctx, "api."+rt.name)
		telemetry.AddRequestAttributes(span, rt.name, r.Method, id)
		r = r.WithContext(ctx)

		defer func() {
			telemetry.AddStatusAttribute(span, rec.status)
			span.End()
			metrics.RecordRequest(rt.name, strconv.Itoa(rec.status), time.Since(start).Seconds())
		}()
		defer h.recoverPanic(rec, r, rt.name)

		if r.Method == http.MethodOptions {
			rec.WriteHeader(http.StatusNoContent)
			return
		}

		if !h.allow(rec, r, rt) {
			return
		}

		if !slices.Contains(rt.methods, r.Method) {
			rec.Header().Set("Allow", strings.Join(append(slices.Clone(rt.methods), http.MethodOptions), ", "))
			writeError(rec, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var body any
		if r.Method == http.MethodPost {
			var ok bool
			if body, ok = h.readJSON(rec, r); !ok {
				return
			}
		}

		rt.handle(rec, r, body)
	})
}

// allow counts the request and writes the advisory headers. A limiter error
// lets the request through with a fresh-window view.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, rt route) bool {
	ctx := r.Context()
	ip := ratelimit.ClientIP(r)

	res, err := h.rateLimiter.Allow(ctx, ratelimit.Key(rt.name, ip), rt.policy.Max, rt.policy.Window)
	if err != nil {
		logging.NewEndpoint(rt.name).Warn(ctx, "rate limiter unavailable, allowing request", "error", err.Error())
		res = ratelimit.Result{
			Allowed:   true,
			Limit:     rt.policy.Max,
			Remaining: rt.policy.Max,
			ResetAt:   h.now().Add(rt.policy.Window),
		}
	}

	ratelimit.SetHeaders(w.Header(), res)
	if res.Allowed {
		return true
	}

	metrics.RecordRateLimitHit(rt.name)
	logging.NewEndpoint(rt.name).Warn(ctx, "rate limit exceeded", "limit", res.Limit)
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
	return false
}

func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request) (any, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.Header().Set("Connection", "close")
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return nil, false
	}

	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return nil, false
	}
	return body, true
}

func (h *Handler) recoverPanic(w *statusRecorder, r *http.Request, name string) {
	p := recover()
	if p == nil {
		return
	}
	if p == http.ErrAbortHandler {
		panic(p)
	}

	stack := string(debug.Stack())
	logging.NewEndpoint(name).Error(r.Context(), "handler panic", "panic", fmt.Sprint(p), "stack", stack)

	if w.wroteHeader {
		// Nothing sensible can follow a partial response.
		panic(http.ErrAbortHandler)
	}

	body := map[string]string{"error": "Internal server error"}
	if !h.cfg.IsProduction() {
		body["stack"] = stack
	}
	w.Header().Set("Cache-Control", cacheNoStore)
	writeJSON(w, http.StatusInternalServerError, body)
}

// notFound answers preflight for any path and 404 otherwise.
func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	setCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "Not found")
}

func detachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
