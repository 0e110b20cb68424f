// Package validate coerces untrusted JSON into the typed requests the handlers
// consume. Validators never mutate their input; they return a sanitized copy.
// Required-field problems accumulate in Errors, optional fields that are out of
// range fall back to their defaults.
package validate

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Result carries the outcome of one validator run.
type Result[T any] struct {
	Valid  bool
	Errors []string
	Data   T
}

func (r *Result[T]) fail(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// Limits bounds request sizes. Zero values are replaced by DefaultLimits.
type Limits struct {
	MaxMessages     int
	MaxTotalChars   int
	MaxMessageChars int
	MaxTTSChars     int
	MaxPriceIDs     int
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessages:     20,
		MaxTotalChars:   10000,
		MaxMessageChars: 10000,
		MaxTTSChars:     1000,
		MaxPriceIDs:     10,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxMessages <= 0 {
		l.MaxMessages = d.MaxMessages
	}
	if l.MaxTotalChars <= 0 {
		l.MaxTotalChars = d.MaxTotalChars
	}
	if l.MaxMessageChars <= 0 {
		l.MaxMessageChars = d.MaxMessageChars
	}
	if l.MaxTTSChars <= 0 {
		l.MaxTTSChars = d.MaxTTSChars
	}
	if l.MaxPriceIDs <= 0 {
		l.MaxPriceIDs = d.MaxPriceIDs
	}
	return l
}

// Sanitize trims s, drops control characters other than tab, newline and
// carriage return, and truncates to max runes.
func Sanitize(s string, max int) string {
	s = strings.TrimSpace(s)
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	if max > 0 && utf8.RuneCountInString(cleaned) > max {
		cleaned = string([]rune(cleaned)[:max])
	}
	return strings.TrimSpace(cleaned)
}

func asObject(body any) (map[string]any, bool) {
	obj, ok := body.(map[string]any)
	return obj, ok
}

// number extracts a finite float from a decoded JSON value.
func number(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
