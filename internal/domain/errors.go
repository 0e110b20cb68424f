package domain

import "errors"

var (
	ErrMissingKey         = errors.New("missing key")
	ErrNotConfigured      = errors.New("service not configured")
	ErrBadPayload         = errors.New("malformed upstream payload")
	ErrEmptyAudio         = errors.New("upstream returned empty audio")
	ErrAudioTooLarge      = errors.New("upstream audio exceeds size cap")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)
