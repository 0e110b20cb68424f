package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind separates the three ways an upstream call can fail.
type Kind string

const (
	KindTimeout Kind = "timeout"
	KindNetwork Kind = "network"
	KindHTTP    Kind = "http-error"
)

// Error is returned for every failed upstream exchange. Status and Body are set
// only for KindHTTP.
type Error struct {
	Kind     Kind
	Upstream string
	Status   int
	Body     []byte
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s: upstream status %d", e.Upstream, e.Status)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Upstream, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError unwraps err to an *Error.
func AsError(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// IsStatus reports whether err is an upstream HTTP error with the given status.
func IsStatus(err error, status int) bool {
	ue, ok := AsError(err)
	return ok && ue.Kind == KindHTTP && ue.Status == status
}

// Classify maps a transport or body-read failure to timeout or network.
// Cancellation, whether by deadline or by the client going away, counts as timeout.
func Classify(ctx context.Context, upstream string, err error) *Error {
	if ue, ok := AsError(err); ok {
		return ue
	}

	kind := KindNetwork
	var netErr net.Error
	switch {
	case ctx.Err() != nil,
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}

	return &Error{Kind: kind, Upstream: upstream, Err: err}
}
