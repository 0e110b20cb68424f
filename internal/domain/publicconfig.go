package domain

// PublicConfig is everything the browser client may learn about the deployment.
// It must never carry secret material; Debug only reports presence.
type PublicConfig struct {
	Environment string          `json:"environment"`
	API         PublicEndpoints `json:"api"`
	Limits      PublicLimits    `json:"limits"`
	Intervals   PublicIntervals `json:"intervals"`
	Features    PublicFeatures  `json:"features"`
	Models      PublicModels    `json:"models"`
	Chat        PublicChat      `json:"chat"`
	Solana      PublicSolana    `json:"solana"`
	Version     PublicVersion   `json:"version"`
	Debug       *PublicDebug    `json:"debug,omitempty"`
}

type PublicEndpoints struct {
	Chat   string `json:"chat"`
	TTS    string `json:"tts"`
	Price  string `json:"price"`
	TPS    string `json:"tps"`
	Health string `json:"health"`
}

type PublicLimits struct {
	MaxMessageLength      int `json:"maxMessageLength"`
	MaxConversationLength int `json:"maxConversationLength"`
	MaxAudioQueueSize     int `json:"maxAudioQueueSize"`
	TTSMaxLength          int `json:"ttsMaxLength"`
}

type PublicIntervals struct {
	PriceUpdateMs int `json:"priceUpdateMs"`
	TPSUpdateMs   int `json:"tpsUpdateMs"`
}

type PublicFeatures struct {
	EnableVoiceChat bool `json:"enableVoiceChat"`
	EnableWebSocket bool `json:"enableWebSocket"`
	EnableAnalytics bool `json:"enableAnalytics"`
}

type PublicModels struct {
	Chat         string   `json:"chat"`
	ChatFallback string   `json:"chatFallback"`
	TTS          string   `json:"tts"`
	Voices       []string `json:"voices"`
	DefaultVoice string   `json:"defaultVoice"`
}

type PublicChat struct {
	SystemPrompt string `json:"systemPrompt"`
}

type PublicSolana struct {
	Network        string `json:"network"`
	DefaultTokenID string `json:"defaultTokenId"`
}

type PublicVersion struct {
	App    string `json:"app"`
	Commit string `json:"commit"`
	Region string `json:"region"`
}

type PublicDebug struct {
	HasChatKey   bool `json:"hasChatKey"`
	HasRPCURL    bool `json:"hasRpcUrl"`
	HasAltRPCURL bool `json:"hasAltRpcUrl"`
	HasRedis     bool `json:"hasRedis"`
}
