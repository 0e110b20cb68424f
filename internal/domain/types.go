package domain

import "encoding/json"

// DefaultTokenID is the wrapped SOL mint, used when a price request names no ids.
const DefaultTokenID = "So11111111111111111111111111111111111111112"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the sanitized form of a client chat body. An empty Model means
// the caller did not pick one from the allow-list.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Model       string    `json:"model,omitempty"`
}

type ChatReply struct {
	Content string          `json:"content"`
	Usage   json.RawMessage `json:"usage"`
	Model   string          `json:"model"`
}

type AudioFormat string

const (
	FormatMP3  AudioFormat = "mp3"
	FormatOpus AudioFormat = "opus"
	FormatAAC  AudioFormat = "aac"
	FormatFLAC AudioFormat = "flac"
)

// MIMEType maps a format to the content type used when the upstream omits one.
func (f AudioFormat) MIMEType() string {
	switch f {
	case FormatOpus:
		return "audio/ogg"
	case FormatAAC:
		return "audio/aac"
	case FormatFLAC:
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}

type TTSRequest struct {
	Text   string      `json:"text"`
	Voice  string      `json:"voice"`
	Format AudioFormat `json:"format"`
}

type PriceRequest struct {
	IDs []string
}

// TokenPrice is the normalized aggregator entry. Nil fields were absent upstream.
type TokenPrice struct {
	USDPrice       *float64 `json:"usdPrice"`
	Decimals       *int     `json:"decimals"`
	PriceChange24h *float64 `json:"priceChange24h"`
}

type PriceReply map[string]TokenPrice

type PerformanceSample struct {
	Slot             uint64 `json:"slot"`
	NumTransactions  uint64 `json:"numTransactions"`
	NumSlots         uint64 `json:"numSlots"`
	SamplePeriodSecs uint64 `json:"samplePeriodSecs"`
}

type TPSReply struct {
	TPS       *int64 `json:"tps"`
	Timestamp string `json:"timestamp"`
	Network   string `json:"network"`
}

type HealthEnvironment struct {
	HasChatKey bool   `json:"hasChatKey"`
	HasRPCURL  bool   `json:"hasRpcUrl"`
	Region     string `json:"region"`
	Commit     string `json:"commit"`
	Env        string `json:"env"`
}

type HealthServices struct {
	Chat  bool `json:"chat"`
	TTS   bool `json:"tts"`
	Price bool `json:"price"`
	TPS   bool `json:"tps"`
}

type HealthReply struct {
	OK          bool                   `json:"ok"`
	Time        int64                  `json:"time"`
	Environment HealthEnvironment      `json:"environment"`
	Services    HealthServices         `json:"services"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
	Breakers    map[string]string      `json:"breakers,omitempty"`
}

type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}
