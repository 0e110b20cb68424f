package validate

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/felipepmaragno/solmate-api/internal/domain"
)

var testModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"}

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return v
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims", "  hello  ", 0, "hello"},
		{"drops control chars", "he\x00l\x07lo", 0, "hello"},
		{"keeps tab newline cr", "a\tb\nc\rd", 0, "a\tb\nc\rd"},
		{"truncates runes", "héllo wörld", 5, "héllo"},
		{"control exposes space", "\x01 hi", 0, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, tt.max); got != tt.want {
				t.Errorf("Sanitize(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{" \x02abc\x1f ", strings.Repeat("z", 50) + "\x00", "\t tab\n", ""}
	for _, in := range inputs {
		once := Sanitize(in, 20)
		if twice := Sanitize(once, 20); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestChat_Valid(t *testing.T) {
	body := decode(t, `{
		"messages": [
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "  what is SOL?\u0000 "}
		],
		"temperature": 1.2,
		"max_tokens": 256,
		"model": "gpt-4o",
		"unknown": true
	}`)

	res := Chat(body, Limits{}, testModels)
	if !res.Valid {
		t.Fatalf("expected valid, errors = %v", res.Errors)
	}
	if len(res.Data.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(res.Data.Messages))
	}
	if res.Data.Messages[1].Content != "what is SOL?" {
		t.Errorf("content = %q", res.Data.Messages[1].Content)
	}
	if res.Data.Temperature != 1.2 || res.Data.MaxTokens != 256 || res.Data.Model != "gpt-4o" {
		t.Errorf("data = %+v", res.Data)
	}
}

func TestChat_OptionalFieldsClampToDefaults(t *testing.T) {
	body := decode(t, `{
		"messages": [{"role": "user", "content": "hi"}],
		"temperature": 7,
		"max_tokens": 12.5,
		"model": "gpt-9-ultra"
	}`)

	res := Chat(body, Limits{}, testModels)
	if !res.Valid {
		t.Fatalf("expected valid, errors = %v", res.Errors)
	}
	if res.Data.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v, want default", res.Data.Temperature)
	}
	if res.Data.MaxTokens != DefaultMaxTokens {
		t.Errorf("max_tokens = %v, want default", res.Data.MaxTokens)
	}
	if res.Data.Model != "" {
		t.Errorf("model = %q, want empty for unlisted model", res.Data.Model)
	}
}

func TestChat_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErrors int
	}{
		{"not an object", `[1,2]`, 1},
		{"missing messages", `{}`, 1},
		{"empty messages", `{"messages": []}`, 1},
		{"messages not array", `{"messages": "hi"}`, 1},
		{"bad role", `{"messages": [{"role": "tool", "content": "x"}]}`, 1},
		{"content not string", `{"messages": [{"role": "user", "content": 5}]}`, 1},
		{"blank content", `{"messages": [{"role": "user", "content": " \u0001 "}]}`, 1},
		{"accumulates", `{"messages": [{"role": "x"}, "str", {"role": "user"}]}`, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Chat(decode(t, tt.body), Limits{}, testModels)
			if res.Valid {
				t.Fatal("expected invalid")
			}
			if len(res.Errors) != tt.wantErrors {
				t.Errorf("errors = %v, want %d", res.Errors, tt.wantErrors)
			}
			if res.Data.Messages != nil {
				t.Error("invalid result should not carry messages")
			}
		})
	}
}

func TestChat_Bounds(t *testing.T) {
	many := make([]map[string]string, 21)
	for i := range many {
		many[i] = map[string]string{"role": "user", "content": "hi"}
	}
	raw, _ := json.Marshal(map[string]any{"messages": many})
	if res := Chat(decode(t, string(raw)), Limits{}, testModels); res.Valid {
		t.Error("21 messages should be rejected")
	}

	big := map[string]any{"messages": []map[string]string{
		{"role": "user", "content": strings.Repeat("a", 6000)},
		{"role": "assistant", "content": strings.Repeat("b", 6000)},
	}}
	raw, _ = json.Marshal(big)
	if res := Chat(decode(t, string(raw)), Limits{}, testModels); res.Valid {
		t.Error("12000 total characters should be rejected")
	}

	res := Chat(decode(t, `{"messages": [{"role": "user", "content": "a"}, {"role": "user", "content": "b"}]}`),
		Limits{MaxMessages: 1}, testModels)
	if res.Valid {
		t.Error("custom MaxMessages should apply")
	}
}

func TestChat_DoesNotMutateInput(t *testing.T) {
	body := decode(t, `{"messages": [{"role": "user", "content": "  spaced  "}]}`)
	Chat(body, Limits{}, testModels)

	msg := body.(map[string]any)["messages"].([]any)[0].(map[string]any)
	if msg["content"] != "  spaced  " {
		t.Errorf("input mutated: %q", msg["content"])
	}
}

func TestChat_IdempotentOnSanitized(t *testing.T) {
	body := decode(t, `{"messages": [{"role": "user", "content": " \u0003gm\u0000 "}], "temperature": 0.2}`)
	first := Chat(body, Limits{}, testModels)

	raw, _ := json.Marshal(first.Data)
	second := Chat(decode(t, string(raw)), Limits{}, testModels)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("validate(sanitize(x)) = %+v, want %+v", second, first)
	}
}

func TestTTS(t *testing.T) {
	res := TTS(decode(t, `{"text": " hello ", "voice": "onyx", "format": "opus"}`), Limits{}, "nova")
	if !res.Valid {
		t.Fatalf("errors = %v", res.Errors)
	}
	want := domain.TTSRequest{Text: "hello", Voice: "onyx", Format: domain.FormatOpus}
	if res.Data != want {
		t.Errorf("data = %+v, want %+v", res.Data, want)
	}
}

func TestTTS_Defaults(t *testing.T) {
	res := TTS(decode(t, `{"text": "hello", "voice": "robot", "format": "wav"}`), Limits{}, "shimmer")
	if !res.Valid {
		t.Fatalf("errors = %v", res.Errors)
	}
	if res.Data.Voice != "shimmer" || res.Data.Format != domain.FormatMP3 {
		t.Errorf("data = %+v", res.Data)
	}

	res = TTS(decode(t, `{"text": "hello"}`), Limits{}, "not-a-voice")
	if res.Data.Voice != "nova" {
		t.Errorf("voice = %q, want nova when default is unlisted", res.Data.Voice)
	}
}

func TestTTS_TruncatesToCap(t *testing.T) {
	raw, _ := json.Marshal(map[string]string{"text": strings.Repeat("x", 1500)})
	res := TTS(decode(t, string(raw)), Limits{MaxTTSChars: 1000}, "nova")
	if !res.Valid {
		t.Fatalf("errors = %v", res.Errors)
	}
	if len(res.Data.Text) != 1000 {
		t.Errorf("len(text) = %d, want 1000", len(res.Data.Text))
	}
}

func TestTTS_Invalid(t *testing.T) {
	for _, body := range []string{`{}`, `{"text": "   "}`, `{"text": 42}`, `"hello"`} {
		if res := TTS(decode(t, body), Limits{}, "nova"); res.Valid {
			t.Errorf("body %s should be invalid", body)
		}
	}
}

func TestPrice(t *testing.T) {
	jup := "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	usdc := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	tests := []struct {
		name      string
		raw       string
		wantValid bool
		wantIDs   []string
	}{
		{"empty uses default", "", true, []string{domain.DefaultTokenID}},
		{"single", jup, true, []string{jup}},
		{"csv with spaces and dupes", jup + " , " + usdc + "," + jup, true, []string{jup, usdc}},
		{"too short", "abc", false, []string{domain.DefaultTokenID}},
		{"bad chars", strings.Repeat("a", 40) + "-", false, []string{domain.DefaultTokenID}},
		{"only commas", ",,,", false, []string{domain.DefaultTokenID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Price(tt.raw, Limits{})
			if res.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors %v)", res.Valid, tt.wantValid, res.Errors)
			}
			if !reflect.DeepEqual(res.Data.IDs, tt.wantIDs) {
				t.Errorf("IDs = %v, want %v", res.Data.IDs, tt.wantIDs)
			}
		})
	}
}

func TestPrice_TooMany(t *testing.T) {
	ids := make([]string, 11)
	for i := range ids {
		ids[i] = strings.Repeat(string(rune('a'+i)), 40)
	}

	res := Price(strings.Join(ids, ","), Limits{})
	if res.Valid {
		t.Fatal("11 ids should be invalid")
	}
	if len(res.Data.IDs) != 1 || res.Data.IDs[0] != domain.DefaultTokenID {
		t.Errorf("IDs = %v, want default", res.Data.IDs)
	}
}
