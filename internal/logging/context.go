package logging

import "context"

const maxUserAgent = 100

// RequestInfo is the per-request context built by the envelope. It is read by
// loggers and handlers and never forwarded upstream.
type RequestInfo struct {
	RequestID string
	Route     string
	Method    string
	IP        string
	UserAgent string
	Region    string
	Commit    string
}

type contextKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	info.UserAgent = Truncate(info.UserAgent, maxUserAgent)
	return context.WithValue(ctx, contextKey{}, info)
}

func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(contextKey{}).(RequestInfo)
	return info, ok
}
