package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felipepmaragno/solmate-api/internal/cache"
	"github.com/felipepmaragno/solmate-api/internal/circuitbreaker"
	"github.com/felipepmaragno/solmate-api/internal/config"
	"github.com/felipepmaragno/solmate-api/internal/cost"
	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/provider/openai"
	"github.com/felipepmaragno/solmate-api/internal/ratelimit"
)

type ChatService interface {
	Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)
}

type SpeechService interface {
	Speech(ctx context.Context, req domain.TTSRequest) (*openai.Audio, error)
}

type PriceService interface {
	Prices(ctx context.Context, ids []string) (domain.PriceReply, error)
}

type TPSService interface {
	RecentPerformanceSamples(ctx context.Context, limit int) ([]domain.PerformanceSample, error)
}

type HandlerConfig struct {
	Config      *config.Config
	RateLimiter ratelimit.RateLimiter
	Chat        ChatService
	Speech      SpeechService
	Prices      PriceService
	TPS         TPSService
	// Cache and Breakers are optional.
	Cache    cache.Cache
	Breakers *circuitbreaker.Manager
	Checkers []HealthChecker
	Now      func() time.Time
}

type Handler struct {
	cfg         *config.Config
	rateLimiter ratelimit.RateLimiter
	chat        ChatService
	speech      SpeechService
	prices      PriceService
	tps         TPSService
	cache       cache.Cache
	breakers    *circuitbreaker.Manager
	checkers    []HealthChecker
	costs       *cost.Calculator
	now         func() time.Time
	mux         *http.ServeMux
}

const (
	pathChat   = "/api/chat"
	pathTTS    = "/api/tts"
	pathPrice  = "/api/price"
	pathTPS    = "/api/tps"
	pathConfig = "/api/config"
	pathHealth = "/api/health"
)

func NewHandler(cfg HandlerConfig) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	h := &Handler{
		cfg:         cfg.Config,
		rateLimiter: cfg.RateLimiter,
		chat:        cfg.Chat,
		speech:      cfg.Speech,
		prices:      cfg.Prices,
		tps:         cfg.TPS,
		cache:       cfg.Cache,
		breakers:    cfg.Breakers,
		checkers:    cfg.Checkers,
		costs:       cost.NewCalculator(),
		now:         now,
		mux:         http.NewServeMux(),
	}

	minute := time.Minute
	routes := map[string]route{
		pathChat:   {name: "chat", methods: []string{http.MethodPost}, policy: ratelimit.DefaultPolicy, handle: h.handleChat},
		pathTTS:    {name: "tts", methods: []string{http.MethodPost}, policy: ratelimit.Policy{Max: 30, Window: minute}, handle: h.handleTTS},
		pathPrice:  {name: "price", methods: []string{http.MethodGet}, policy: ratelimit.Policy{Max: 60, Window: minute}, handle: h.handlePrice},
		pathTPS:    {name: "tps", methods: []string{http.MethodGet}, policy: ratelimit.Policy{Max: 30, Window: minute}, handle: h.handleTPS},
		pathConfig: {name: "config", methods: []string{http.MethodGet}, policy: ratelimit.Policy{Max: 20, Window: minute}, handle: h.handleConfig},
		pathHealth: {name: "health", methods: []string{http.MethodGet}, policy: ratelimit.DefaultPolicy, handle: h.handleHealth},
	}
	for path, rt := range routes {
		h.mux.Handle(path, h.wrap(rt))
	}

	h.mux.Handle("GET /metrics", promhttp.Handler())
	h.mux.HandleFunc("/", h.notFound)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// breaker returns nil when breakers are not configured.
func (h *Handler) breaker(name string) circuitbreaker.CircuitBreaker {
	if h.breakers == nil {
		return nil
	}
	return h.breakers.Get(name)
}
