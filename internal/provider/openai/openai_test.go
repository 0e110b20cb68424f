package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "sk-test", BaseURL: srv.URL, UserAgent: "Solmate/test"})
}

var chatReq = domain.ChatRequest{
	Messages:    []domain.Message{{Role: domain.RoleUser, Content: "gm"}},
	Temperature: 0.6,
	MaxTokens:   700,
}

func TestChatCompletion_Success(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "Solmate/test" {
			t.Errorf("User-Agent = %q", got)
		}

		var body chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.Model != "gpt-4o-mini" || body.MaxTokens != 700 || len(body.Messages) != 1 {
			t.Errorf("body = %+v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","model":"gpt-4o-mini-2024-07-18","choices":[{"message":{"role":"assistant","content":"gm!"}}],"usage":{"total_tokens":12}}`))
	})

	reply, err := p.ChatCompletion(context.Background(), "gpt-4o-mini", chatReq)
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if reply.Content != "gm!" {
		t.Errorf("Content = %q", reply.Content)
	}
	if reply.Model != "gpt-4o-mini-2024-07-18" {
		t.Errorf("Model = %q", reply.Model)
	}
	if string(reply.Usage) != `{"total_tokens":12}` {
		t.Errorf("Usage = %s", reply.Usage)
	}
}

func TestChatCompletion_MissingUsageAndModel(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
	})

	reply, err := p.ChatCompletion(context.Background(), "gpt-4o", chatReq)
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if string(reply.Usage) != "null" {
		t.Errorf("Usage = %s, want null", reply.Usage)
	}
	if reply.Model != "gpt-4o" {
		t.Errorf("Model = %q, want requested model", reply.Model)
	}
}

func TestChatCompletion_HTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota"}}`))
	})

	_, err := p.ChatCompletion(context.Background(), "gpt-4o-mini", chatReq)
	ue, ok := httputil.AsError(err)
	if !ok {
		t.Fatalf("error = %v, want *httputil.Error", err)
	}
	if ue.Kind != httputil.KindHTTP || ue.Status != http.StatusTooManyRequests {
		t.Errorf("error = %+v", ue)
	}
	if !strings.Contains(string(ue.Body), "quota") {
		t.Errorf("Body = %s", ue.Body)
	}
}

func TestChatCompletion_BadPayload(t *testing.T) {
	for _, body := range []string{`not json`, `{"choices":[]}`} {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		_, err := p.ChatCompletion(context.Background(), "gpt-4o-mini", chatReq)
		if !errors.Is(err, domain.ErrBadPayload) {
			t.Errorf("body %q: error = %v, want ErrBadPayload", body, err)
		}
	}
}

func TestChatCompletion_MissingKey(t *testing.T) {
	p := New(Config{BaseURL: "http://127.0.0.1:1"})

	if _, err := p.ChatCompletion(context.Background(), "gpt-4o-mini", chatReq); !errors.Is(err, domain.ErrMissingKey) {
		t.Errorf("error = %v, want ErrMissingKey", err)
	}
	if _, err := p.Speech(context.Background(), domain.TTSRequest{Text: "x"}); !errors.Is(err, domain.ErrMissingKey) {
		t.Errorf("error = %v, want ErrMissingKey", err)
	}
}

func TestSpeech_StreamsAudio(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body speechRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "tts-1" || body.Voice != "nova" || body.ResponseFormat != "mp3" || body.Input != "hello" {
			t.Errorf("body = %+v", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio-bytes"))
	})

	audio, err := p.Speech(context.Background(), domain.TTSRequest{Text: "hello", Voice: "nova", Format: domain.FormatMP3})
	if err != nil {
		t.Fatalf("Speech() error = %v", err)
	}
	defer audio.Close()

	data, _ := io.ReadAll(audio.Body)
	if string(data) != "ID3-audio-bytes" {
		t.Errorf("audio = %q", data)
	}
	if audio.ContentType != "audio/mpeg" {
		t.Errorf("ContentType = %q", audio.ContentType)
	}
}

func TestSpeech_HTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := p.Speech(context.Background(), domain.TTSRequest{Text: "hello", Voice: "nova", Format: domain.FormatMP3})
	if !httputil.IsStatus(err, http.StatusInternalServerError) {
		t.Errorf("error = %v, want status 500", err)
	}
}
