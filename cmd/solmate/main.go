package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/solmate-api/internal/api"
	"github.com/felipepmaragno/solmate-api/internal/cache"
	"github.com/felipepmaragno/solmate-api/internal/circuitbreaker"
	"github.com/felipepmaragno/solmate-api/internal/config"
	"github.com/felipepmaragno/solmate-api/internal/logging"
	"github.com/felipepmaragno/solmate-api/internal/metrics"
	"github.com/felipepmaragno/solmate-api/internal/notifications"
	"github.com/felipepmaragno/solmate-api/internal/provider/jupiter"
	"github.com/felipepmaragno/solmate-api/internal/provider/openai"
	"github.com/felipepmaragno/solmate-api/internal/provider/solana"
	"github.com/felipepmaragno/solmate-api/internal/ratelimit"
	"github.com/felipepmaragno/solmate-api/internal/router"
	"github.com/felipepmaragno/solmate-api/internal/secrets"
	"github.com/felipepmaragno/solmate-api/internal/telemetry"
)

const serviceName = "solmate-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logCloser := logging.Setup(cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()

	slog.Info("starting Solmate API", "addr", cfg.Addr, "version", config.Version, "env", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OpenAIAPIKey == "" && cfg.OpenAIAPIKeySecret != "" {
		store, err := secrets.NewAWSSecretsManager(ctx, cfg.AWSRegion)
		if err != nil {
			slog.Warn("secrets manager unavailable, chat and tts disabled", "error", err)
		} else if err := cfg.ResolveSecrets(ctx, store); err != nil {
			slog.Warn("failed to resolve chat key, chat and tts disabled", "error", err)
		} else {
			slog.Info("chat key loaded from secrets manager")
		}
	}
	logging.RegisterSecret(cfg.OpenAIAPIKey)

	shutdownTracing, err := telemetry.Init(ctx, serviceName, config.Version, cfg.OTLPEndpoint)
	if err != nil {
		slog.Warn("failed to initialize telemetry", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	metrics.InitInstanceMetrics(config.Version, cfg.CommitSHA, cfg.Region, cfg.Environment)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Every Redis-backed component fails open, so keep going.
			slog.Warn("redis not reachable at startup", "error", err)
		}
		defer redisClient.Close()
	}

	var (
		rateLimiter   ratelimit.RateLimiter
		responseCache cache.Cache
		checkers      []api.HealthChecker
		breakerOpts   []circuitbreaker.ManagerOption
	)
	if redisClient != nil {
		rateLimiter = ratelimit.NewRedisRateLimiterWithClient(redisClient)
		responseCache = cache.NewRedisCacheWithClient(redisClient)
		checkers = append(checkers, api.NewRedisHealthCheckerWithClient(redisClient))
		breakerOpts = append(breakerOpts, circuitbreaker.WithRedisClient(redisClient))
		slog.Info("using redis for rate limits, cache and circuit breakers")
	} else {
		limiter := ratelimit.NewInMemoryRateLimiter(ratelimit.WithMaxKeys(cfg.RateLimitMaxKeys))
		limiter.StartJanitor(ctx, time.Minute)
		rateLimiter = limiter

		memCache := cache.NewInMemoryCache()
		memCache.StartJanitor(ctx, time.Minute)
		responseCache = memCache
		slog.Info("using in-memory rate limits, cache and circuit breakers")
	}

	var notifier notifications.Notifier = notifications.NewLogNotifier()
	if cfg.SNSTopicARN != "" {
		sns, err := notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			slog.Warn("sns unavailable, alerts go to the log", "error", err)
		} else {
			notifier = sns
		}
	}
	var dedup notifications.Deduplicator = notifications.NewInMemoryDeduplicator()
	if redisClient != nil {
		dedup = notifications.NewRedisDeduplicatorWithClient(redisClient, time.Hour)
	}
	alerter := notifications.NewAlerter(notifier, cfg.Region, cfg.CommitSHA, notifications.WithDeduplicator(dedup))

	breakerOpts = append(breakerOpts, circuitbreaker.WithStateChange(func(name string, from, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
		slog.Warn("circuit breaker state changed", "upstream", name, "from", from.String(), "to", to.String())
		switch to {
		case circuitbreaker.StateOpen:
			alerter.UpstreamDown(name)
		case circuitbreaker.StateClosed:
			alerter.UpstreamUp(name)
		}
	}))
	breakers := circuitbreaker.NewManager(circuitbreaker.DefaultConfig(), breakerOpts...)

	userAgent := "Solmate/" + config.Version

	oa := openai.New(openai.Config{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		TTSModel:  cfg.TTSModel,
		UserAgent: userAgent,
	})
	prices := jupiter.New(jupiter.Config{
		BaseURL:   cfg.PriceAPIURL,
		UserAgent: userAgent,
		RPS:       cfg.PriceUpstreamRPS,
	})
	rpc := solana.New(solana.Config{
		RPCURL:    cfg.RPCURL(),
		UserAgent: userAgent,
	})

	handler := api.NewHandler(api.HandlerConfig{
		Config:      cfg,
		RateLimiter: rateLimiter,
		Chat:        router.New(oa, cfg.ChatModel, cfg.ChatFallbackModel),
		Speech:      oa,
		Prices:      prices,
		TPS:         rpc,
		Cache:       responseCache,
		Breakers:    breakers,
		Checkers:    checkers,
	})

	slog.Info("services configured",
		"chat", cfg.HasChatKey(),
		"tts", cfg.HasChatKey(),
		"tps", cfg.RPCURL() != "",
		"redis", redisClient != nil,
		"sns", cfg.SNSTopicARN != "",
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	cancel()
	alerter.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("failed to flush traces", "error", err)
	}

	slog.Info("server stopped")
}
