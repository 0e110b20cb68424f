package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solmate_requests_total",
			Help: "Total number of API requests by endpoint and response status",
		},
		[]string{"endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solmate_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solmate_upstream_requests_total",
			Help: "Total number of upstream calls by outcome (ok, timeout, network, http-error)",
		},
		[]string{"upstream", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solmate_upstream_duration_seconds",
			Help:    "Time until upstream response headers in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"upstream"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solmate_rate_limit_hits_total",
			Help: "Total number of requests rejected by the local rate limiter",
		},
		[]string{"endpoint"},
	)

	TTSFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solmate_tts_fallbacks_total",
			Help: "Total number of speech requests answered with the browser fallback",
		},
		[]string{"reason"},
	)

	TTSBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solmate_tts_bytes_total",
			Help: "Total audio bytes forwarded to clients",
		},
	)

	ChatQuotaRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solmate_chat_quota_retries_total",
			Help: "Total number of chat calls retried on the fallback model after a 429",
		},
	)

	ChatTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solmate_chat_tokens_total",
			Help: "Total chat tokens reported by the upstream, by model and kind (prompt, completion)",
		},
		[]string{"model", "kind"},
	)

	ChatCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solmate_chat_cost_usd_total",
			Help: "Estimated chat spend in USD at list prices",
		},
		[]string{"model"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solmate_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"endpoint"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solmate_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solmate_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"upstream"},
	)

	InstanceInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solmate_instance_info",
			Help: "Instance information (always 1)",
		},
		[]string{"version", "commit", "region", "env"},
	)
)

func RecordRequest(endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(durationSec)
}

func RecordUpstream(upstream, outcome string, durationSec float64) {
	UpstreamRequests.WithLabelValues(upstream, outcome).Inc()
	UpstreamDuration.WithLabelValues(upstream).Observe(durationSec)
}

func RecordRateLimitHit(endpoint string) {
	RateLimitHits.WithLabelValues(endpoint).Inc()
}

func RecordTTSFallback(reason string) {
	TTSFallbacks.WithLabelValues(reason).Inc()
}

func AddTTSBytes(n int64) {
	TTSBytes.Add(float64(n))
}

func RecordChatQuotaRetry() {
	ChatQuotaRetries.Inc()
}

func RecordChatUsage(model string, promptTokens, completionTokens int, costUSD float64) {
	ChatTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	ChatTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	ChatCostUSD.WithLabelValues(model).Add(costUSD)
}

func RecordCacheHit(endpoint string) {
	CacheHits.WithLabelValues(endpoint).Inc()
}

func RecordCacheMiss(endpoint string) {
	CacheMisses.WithLabelValues(endpoint).Inc()
}

func SetCircuitBreakerState(upstream string, state int) {
	CircuitBreakerState.WithLabelValues(upstream).Set(float64(state))
}

// InitInstanceMetrics publishes the build stamps once at startup.
func InitInstanceMetrics(version, commit, region, env string) {
	InstanceInfo.WithLabelValues(version, commit, region, env).Set(1)
}
