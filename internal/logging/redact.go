package logging

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const maxSnippet = 500

var (
	secretsMu sync.RWMutex
	secrets   []string
)

// RegisterSecret marks a value that must never leave the process in a log
// record or a response body.
func RegisterSecret(s string) {
	if s == "" {
		return
	}
	secretsMu.Lock()
	defer secretsMu.Unlock()
	for _, existing := range secrets {
		if existing == s {
			return
		}
	}
	secrets = append(secrets, s)
}

// Scrub replaces every registered secret in s with "***".
func Scrub(s string) string {
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	for _, secret := range secrets {
		s = strings.ReplaceAll(s, secret, "***")
	}
	return s
}

// Snippet prepares an upstream body for logging: scrubbed and capped at 500 chars.
func Snippet(body []byte) string {
	return Truncate(Scrub(string(body)), maxSnippet)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func resetSecrets() {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	secrets = nil
}
