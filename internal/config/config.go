package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/felipepmaragno/solmate-api/internal/secrets"
)

const (
	Version = "1.4.0"

	EnvProduction = "production"

	DefaultChatModel    = "gpt-4o-mini"
	DefaultSystemPrompt = "You are Solmate, a friendly Solana companion. Answer questions about " +
		"Solana, wallets, tokens and the ecosystem in two or three short spoken sentences. " +
		"Never give financial advice and never ask for private keys or seed phrases."
)

type Config struct {
	Addr     string
	LogLevel string
	LogFile  string

	OpenAIAPIKey       string
	OpenAIAPIKeySecret string
	OpenAIBaseURL      string
	ChatModel          string
	ChatFallbackModel  string
	TTSModel           string
	TTSVoice           string
	ChatSystemPrompt   string

	SolanaRPCURL    string
	SolanaRPCURLAlt string
	SolanaNetwork   string

	PriceAPIURL      string
	PriceUpstreamRPS float64

	MaxMessageLength      int
	MaxConversationLength int
	MaxAudioQueueSize     int
	TTSMaxLength          int
	PriceUpdateInterval   int
	TPSUpdateInterval     int
	MaxBodyBytes          int64
	RateLimitMaxKeys      int

	Environment     string
	Region          string
	CommitSHA       string
	EnableAnalytics bool

	RedisURL     string
	OTLPEndpoint string
	AWSRegion    string
	SNSTopicARN  string

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:                  getEnv("ADDR", ":8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFile:               getEnv("LOG_FILE", ""),
		OpenAIAPIKey:          strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
		OpenAIAPIKeySecret:    getEnv("OPENAI_API_KEY_SECRET", ""),
		OpenAIBaseURL:         strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		ChatModel:             getEnv("OPENAI_MODEL", ""),
		ChatFallbackModel:     getEnv("OPENAI_FALLBACK_MODEL", "gpt-3.5-turbo"),
		TTSModel:              getEnv("OPENAI_TTS_MODEL", "tts-1"),
		TTSVoice:              getEnv("OPENAI_TTS_VOICE", "nova"),
		ChatSystemPrompt:      getEnv("CHAT_SYSTEM_PROMPT", DefaultSystemPrompt),
		SolanaRPCURL:          strings.TrimSpace(getEnv("SOLANA_RPC_URL", "")),
		SolanaRPCURLAlt:       strings.TrimSpace(getEnv("SOLANA_RPC_URL_ALT", "")),
		SolanaNetwork:         getEnv("SOLANA_NETWORK", "mainnet-beta"),
		PriceAPIURL:           strings.TrimRight(getEnv("PRICE_API_URL", "https://lite-api.jup.ag/price/v3"), "/"),
		PriceUpstreamRPS:      getFloatEnv("PRICE_UPSTREAM_RPS", 5),
		MaxMessageLength:      getIntEnv("MAX_MESSAGE_LENGTH", 500),
		MaxConversationLength: getIntEnv("MAX_CONVERSATION_LENGTH", 20),
		MaxAudioQueueSize:     getIntEnv("MAX_AUDIO_QUEUE_SIZE", 5),
		TTSMaxLength:          getIntEnv("TTS_MAX_LENGTH", 1000),
		PriceUpdateInterval:   getIntEnv("PRICE_UPDATE_INTERVAL", 30000),
		TPSUpdateInterval:     getIntEnv("TPS_UPDATE_INTERVAL", 10000),
		MaxBodyBytes:          int64(getIntEnv("MAX_BODY_BYTES", 1<<20)),
		RateLimitMaxKeys:      getIntEnv("RATE_LIMIT_MAX_KEYS", 10000),
		Environment:           getEnv("APP_ENV", "development"),
		Region:                getEnv("DEPLOY_REGION", "local"),
		CommitSHA:             shortCommit(getEnv("COMMIT_SHA", "dev")),
		EnableAnalytics:       getBoolEnv("ENABLE_ANALYTICS", false),
		RedisURL:              getEnv("REDIS_URL", ""),
		OTLPEndpoint:          getEnv("OTLP_ENDPOINT", ""),
		AWSRegion:             getEnv("AWS_REGION", ""),
		SNSTopicARN:           getEnv("SNS_TOPIC_ARN", ""),
		ShutdownTimeout:       getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if cfg.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", cfg.MaxBodyBytes)
	}
	if cfg.TTSMaxLength <= 0 {
		return nil, fmt.Errorf("TTS_MAX_LENGTH must be positive, got %d", cfg.TTSMaxLength)
	}
	if cfg.MaxConversationLength <= 0 {
		return nil, fmt.Errorf("MAX_CONVERSATION_LENGTH must be positive, got %d", cfg.MaxConversationLength)
	}

	return cfg, nil
}

// ResolveSecrets fills the chat key from the secret store when it was not given
// directly. The key stays empty on failure so endpoints degrade instead of the
// process refusing to start.
func (c *Config) ResolveSecrets(ctx context.Context, store secrets.SecretStore) error {
	if c.OpenAIAPIKey != "" || c.OpenAIAPIKeySecret == "" || store == nil {
		return nil
	}

	value, err := store.GetSecret(ctx, c.OpenAIAPIKeySecret)
	if err != nil {
		return fmt.Errorf("resolve chat key: %w", err)
	}
	c.OpenAIAPIKey = strings.TrimSpace(value)
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) HasChatKey() bool {
	return c.OpenAIAPIKey != ""
}

// RPCURL returns the primary RPC endpoint, or the alternate when only that one is set.
func (c *Config) RPCURL() string {
	if c.SolanaRPCURL != "" {
		return c.SolanaRPCURL
	}
	return c.SolanaRPCURLAlt
}

func shortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
