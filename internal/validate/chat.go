package validate

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/felipepmaragno/solmate-api/internal/domain"
)

const (
	DefaultTemperature = 0.6
	DefaultMaxTokens   = 700
	maxTemperature     = 2.0
	maxMaxTokens       = 4000
)

// ChatModels is the chat model allow-list. The first entry is the baked-in default.
var ChatModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "gpt-4.1-nano", "gpt-3.5-turbo"}

// Chat validates a decoded chat body. models is the allow-list; an absent or
// unlisted model leaves Data.Model empty so the caller applies its default.
func Chat(body any, limits Limits, models []string) Result[domain.ChatRequest] {
	limits = limits.withDefaults()
	res := Result[domain.ChatRequest]{
		Valid: true,
		Data: domain.ChatRequest{
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
	}

	obj, ok := asObject(body)
	if !ok {
		res.fail("request body must be a JSON object")
		return res
	}

	raw, ok := obj["messages"].([]any)
	switch {
	case !ok:
		res.fail("messages must be an array")
	case len(raw) == 0:
		res.fail("messages must not be empty")
	case len(raw) > limits.MaxMessages:
		res.fail(fmt.Sprintf("messages must contain at most %d entries", limits.MaxMessages))
	default:
		res.Data.Messages = chatMessages(&res, raw, limits)
	}

	if f, ok := number(obj["temperature"]); ok && f >= 0 && f <= maxTemperature {
		res.Data.Temperature = f
	}
	if f, ok := number(obj["max_tokens"]); ok && f == math.Trunc(f) && f >= 1 && f <= maxMaxTokens {
		res.Data.MaxTokens = int(f)
	}
	if m, ok := obj["model"].(string); ok && contains(models, m) {
		res.Data.Model = m
	}

	if !res.Valid {
		res.Data.Messages = nil
	}
	return res
}

func chatMessages(res *Result[domain.ChatRequest], raw []any, limits Limits) []domain.Message {
	messages := make([]domain.Message, 0, len(raw))
	total := 0

	for i, item := range raw {
		entry, ok := asObject(item)
		if !ok {
			res.fail(fmt.Sprintf("messages[%d] must be an object", i))
			continue
		}

		role, _ := entry["role"].(string)
		switch domain.Role(role) {
		case domain.RoleSystem, domain.RoleUser, domain.RoleAssistant:
		default:
			res.fail(fmt.Sprintf("messages[%d].role must be one of system, user, assistant", i))
			continue
		}

		content, ok := entry["content"].(string)
		if !ok {
			res.fail(fmt.Sprintf("messages[%d].content must be a string", i))
			continue
		}
		content = Sanitize(content, limits.MaxMessageChars)
		if content == "" {
			res.fail(fmt.Sprintf("messages[%d].content must not be empty", i))
			continue
		}

		total += utf8.RuneCountInString(content)
		messages = append(messages, domain.Message{Role: domain.Role(role), Content: content})
	}

	if total > limits.MaxTotalChars {
		res.fail(fmt.Sprintf("total message content must be at most %d characters", limits.MaxTotalChars))
	}
	return messages
}
