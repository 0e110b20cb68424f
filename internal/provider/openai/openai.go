// Package openai talks to an OpenAI-compatible API for chat completions and
// speech synthesis.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
)

const (
	ChatTimeout   = 30 * time.Second
	SpeechTimeout = 25 * time.Second

	maxChatBody = 4 << 20
)

type Config struct {
	APIKey    string
	BaseURL   string
	TTSModel  string
	UserAgent string
	// HTTPClient overrides the shared transport, for tests.
	HTTPClient *http.Client
}

type Provider struct {
	apiKey   string
	baseURL  string
	ttsModel string
	chat     *httputil.Client
	speech   *httputil.Client
}

func New(cfg Config) *Provider {
	opts := []httputil.Option{httputil.WithUserAgent(cfg.UserAgent)}
	if cfg.HTTPClient != nil {
		opts = append(opts, httputil.WithHTTPClient(cfg.HTTPClient))
	}

	ttsModel := cfg.TTSModel
	if ttsModel == "" {
		ttsModel = "tts-1"
	}

	return &Provider{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		ttsModel: ttsModel,
		chat:     httputil.New("openai-chat", opts...),
		speech:   httputil.New("openai-tts", opts...),
	}
}

func (p *Provider) HasKey() bool {
	return p.apiKey != ""
}

type chatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
}

// ChatCompletion runs one non-streaming completion on model. Upstream failures
// come back as *httputil.Error; unusable bodies wrap domain.ErrBadPayload.
func (p *Provider) ChatCompletion(ctx context.Context, model string, req domain.ChatRequest) (*domain.ChatReply, error) {
	if !p.HasKey() {
		return nil, domain.ErrMissingKey
	}

	resp, err := p.chat.Do(ctx, httputil.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/chat/completions",
		Body: chatCompletionRequest{
			Model:       model,
			Messages:    req.Messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
		Bearer:  p.apiKey,
		Accept:  "application/json",
		Timeout: ChatTimeout,
	})
	if err != nil {
		return nil, err
	}

	data, err := p.chat.ReadAll(ctx, resp, maxChatBody)
	if err != nil {
		return nil, err
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(data, &completion); err != nil {
		return nil, fmt.Errorf("decode completion: %w", domain.ErrBadPayload)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion has no choices: %w", domain.ErrBadPayload)
	}

	reply := &domain.ChatReply{
		Content: completion.Choices[0].Message.Content,
		Usage:   completion.Usage,
		Model:   completion.Model,
	}
	if len(reply.Usage) == 0 {
		reply.Usage = json.RawMessage("null")
	}
	if reply.Model == "" {
		reply.Model = model
	}
	return reply, nil
}

// Audio is an open speech stream. The caller must Close it.
type Audio struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

func (a *Audio) Close() error {
	return a.Body.Close()
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Speech starts synthesis and returns once response headers arrive; the audio
// is read from the returned stream.
func (p *Provider) Speech(ctx context.Context, req domain.TTSRequest) (*Audio, error) {
	if !p.HasKey() {
		return nil, domain.ErrMissingKey
	}

	resp, err := p.speech.Do(ctx, httputil.Request{
		Method: http.MethodPost,
		URL:    p.baseURL + "/audio/speech",
		Body: speechRequest{
			Model:          p.ttsModel,
			Input:          req.Text,
			Voice:          req.Voice,
			ResponseFormat: string(req.Format),
		},
		Bearer:  p.apiKey,
		Accept:  "audio/*",
		Timeout: SpeechTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Audio{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}
