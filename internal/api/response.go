package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	cacheNoStore = "no-store"

	headerTTSFallback = "X-Solmate-TTS-Fallback"
	headerTTSSuccess  = "X-Solmate-TTS-Success"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"Internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeValidation(w http.ResponseWriter, details []string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request", Details: details})
}
