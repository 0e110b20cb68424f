package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/felipepmaragno/solmate-api/internal/config"
	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/logging"
	"github.com/felipepmaragno/solmate-api/internal/validate"
)

var configLog = logging.NewEndpoint("config")

func publicEndpoints() domain.PublicEndpoints {
	return domain.PublicEndpoints{
		Chat:   pathChat,
		TTS:    pathTTS,
		Price:  pathPrice,
		TPS:    pathTPS,
		Health: pathHealth,
	}
}

// fallbackConfig is served when assembling the real document fails. It uses
// only compiled-in values.
type fallbackConfig struct {
	domain.PublicConfig
	Error string `json:"error"`
}

func minimalConfig() fallbackConfig {
	return fallbackConfig{
		PublicConfig: domain.PublicConfig{
			Environment: "unknown",
			API:         publicEndpoints(),
			Limits: domain.PublicLimits{
				MaxMessageLength:      500,
				MaxConversationLength: 20,
				MaxAudioQueueSize:     5,
				TTSMaxLength:          1000,
			},
			Intervals: domain.PublicIntervals{PriceUpdateMs: 30000, TPSUpdateMs: 10000},
			Models: domain.PublicModels{
				Chat:         config.DefaultChatModel,
				TTS:          "tts-1",
				Voices:       validate.Voices,
				DefaultVoice: "nova",
			},
			Solana:  domain.PublicSolana{Network: "mainnet-beta", DefaultTokenID: domain.DefaultTokenID},
			Version: domain.PublicVersion{App: config.Version},
		},
		Error: "Configuration unavailable",
	}
}

func usableURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (h *Handler) publicConfig() domain.PublicConfig {
	c := h.cfg

	chatModel := c.ChatModel
	if chatModel == "" {
		chatModel = config.DefaultChatModel
	}

	pc := domain.PublicConfig{
		Environment: c.Environment,
		API:         publicEndpoints(),
		Limits: domain.PublicLimits{
			MaxMessageLength:      c.MaxMessageLength,
			MaxConversationLength: c.MaxConversationLength,
			MaxAudioQueueSize:     c.MaxAudioQueueSize,
			TTSMaxLength:          c.TTSMaxLength,
		},
		Intervals: domain.PublicIntervals{
			PriceUpdateMs: c.PriceUpdateInterval,
			TPSUpdateMs:   c.TPSUpdateInterval,
		},
		Features: domain.PublicFeatures{
			EnableVoiceChat: c.HasChatKey(),
			EnableWebSocket: usableURL(c.RPCURL()),
			EnableAnalytics: c.EnableAnalytics,
		},
		Models: domain.PublicModels{
			Chat:         chatModel,
			ChatFallback: c.ChatFallbackModel,
			TTS:          c.TTSModel,
			Voices:       validate.Voices,
			DefaultVoice: c.TTSVoice,
		},
		Chat:    domain.PublicChat{SystemPrompt: c.ChatSystemPrompt},
		Solana:  domain.PublicSolana{Network: c.SolanaNetwork, DefaultTokenID: domain.DefaultTokenID},
		Version: domain.PublicVersion{App: config.Version, Commit: c.CommitSHA, Region: c.Region},
	}

	if !c.IsProduction() {
		pc.Debug = &domain.PublicDebug{
			HasChatKey:   c.HasChatKey(),
			HasRPCURL:    c.SolanaRPCURL != "",
			HasAltRPCURL: c.SolanaRPCURLAlt != "",
			HasRedis:     c.RedisURL != "",
		}
	}
	return pc
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request, _ any) {
	ctx := r.Context()
	defer func() {
		if p := recover(); p != nil {
			configLog.Error(ctx, "config assembly failed", "panic", fmt.Sprint(p))
			w.Header().Set("Cache-Control", cacheNoStore)
			writeJSON(w, http.StatusInternalServerError, minimalConfig())
		}
	}()

	pc := h.publicConfig()

	if h.cfg.IsProduction() {
		w.Header().Set("Cache-Control", "public, max-age=300")
	} else {
		w.Header().Set("Cache-Control", cacheNoStore)
	}
	configLog.OK(ctx, "config served", "env", pc.Environment)
	writeJSON(w, http.StatusOK, pc)
}
