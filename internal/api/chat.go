package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/felipepmaragno/solmate-api/internal/cost"
	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
	"github.com/felipepmaragno/solmate-api/internal/logging"
	"github.com/felipepmaragno/solmate-api/internal/metrics"
	"github.com/felipepmaragno/solmate-api/internal/validate"
)

var chatLog = logging.NewEndpoint("chat")

func (h *Handler) chatLimits() validate.Limits {
	limits := validate.DefaultLimits()
	if h.cfg.MaxConversationLength < limits.MaxMessages {
		limits.MaxMessages = h.cfg.MaxConversationLength
	}
	return limits
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request, body any) {
	ctx := r.Context()
	w.Header().Set("Cache-Control", cacheNoStore)

	res := validate.Chat(body, h.chatLimits(), validate.ChatModels)
	if !res.Valid {
		chatLog.Warn(ctx, "invalid chat request", "errors", strings.Join(res.Errors, "; "))
		writeValidation(w, res.Errors)
		return
	}

	if !h.cfg.HasChatKey() || h.chat == nil {
		chatLog.Error(ctx, "chat key not configured")
		writeError(w, http.StatusInternalServerError, "missing key")
		return
	}

	chatLog.Start(ctx, "chat completion", "messages", len(res.Data.Messages), "model", res.Data.Model)

	reply, err := h.chat.Complete(ctx, res.Data)
	if err != nil {
		writeChatError(ctx, w, err)
		return
	}

	args := []any{"model", reply.Model, "chars", len(reply.Content)}
	if usage, ok := cost.ParseUsage(reply.Usage); ok {
		spent := h.costs.Calculate(reply.Model, usage)
		metrics.RecordChatUsage(reply.Model, usage.PromptTokens, usage.CompletionTokens, spent)
		args = append(args, "tokens", usage.TotalTokens, "cost_usd", spent)
	}
	chatLog.OK(ctx, "chat completion done", args...)
	writeJSON(w, http.StatusOK, reply)
}

// writeChatError forwards upstream HTTP failures with their status and parsed
// body; everything else maps to a gateway status.
func writeChatError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrMissingKey) {
		writeError(w, http.StatusInternalServerError, "missing key")
		return
	}
	if errors.Is(err, domain.ErrBadPayload) {
		chatLog.Error(ctx, "unusable completion payload", "error", err.Error())
		writeError(w, http.StatusBadGateway, "Invalid response from chat service")
		return
	}

	ue, ok := httputil.AsError(err)
	if !ok {
		chatLog.Error(ctx, "chat completion failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch ue.Kind {
	case httputil.KindTimeout:
		chatLog.Error(ctx, "chat upstream timeout", "error", ue.Error())
		writeError(w, http.StatusGatewayTimeout, "Chat service timeout")
	case httputil.KindNetwork:
		chatLog.Error(ctx, "chat upstream unreachable", "error", ue.Error())
		writeError(w, http.StatusBadGateway, "Chat service unavailable")
	default:
		chatLog.Error(ctx, "chat upstream error", "status", ue.Status, "body", logging.Snippet(ue.Body))

		scrubbed := []byte(logging.Scrub(string(ue.Body)))
		if len(scrubbed) > 0 && json.Valid(scrubbed) {
			writeJSON(w, ue.Status, json.RawMessage(scrubbed))
			return
		}
		writeError(w, ue.Status, "Chat service error")
	}
}
