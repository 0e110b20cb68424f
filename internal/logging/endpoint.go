package logging

import (
	"context"
	"log/slog"
)

// Endpoint emits records tagged with one endpoint name. Start and OK are info
// records distinguished by the phase attribute.
type Endpoint struct {
	tag    string
	logger *slog.Logger
}

func NewEndpoint(tag string) *Endpoint {
	return &Endpoint{tag: tag}
}

// WithLogger pins the endpoint to a logger other than slog.Default.
func (e *Endpoint) WithLogger(l *slog.Logger) *Endpoint {
	return &Endpoint{tag: e.tag, logger: l}
}

func (e *Endpoint) Start(ctx context.Context, msg string, args ...any) {
	e.log(ctx, slog.LevelInfo, "start", msg, args)
}

func (e *Endpoint) OK(ctx context.Context, msg string, args ...any) {
	e.log(ctx, slog.LevelInfo, "ok", msg, args)
}

func (e *Endpoint) Warn(ctx context.Context, msg string, args ...any) {
	e.log(ctx, slog.LevelWarn, "warn", msg, args)
}

func (e *Endpoint) Error(ctx context.Context, msg string, args ...any) {
	e.log(ctx, slog.LevelError, "error", msg, args)
}

func (e *Endpoint) log(ctx context.Context, level slog.Level, phase, msg string, args []any) {
	l := e.logger
	if l == nil {
		l = slog.Default()
	}
	if !l.Enabled(ctx, level) {
		return
	}

	attrs := make([]any, 0, len(args)+16)
	attrs = append(attrs, "endpoint", e.tag, "phase", phase)
	if info, ok := RequestInfoFrom(ctx); ok {
		attrs = append(attrs,
			"request_id", info.RequestID,
			"method", info.Method,
			"ip", info.IP,
			"ua", info.UserAgent,
			"region", info.Region,
			"commit", info.Commit,
		)
	}
	for i, a := range args {
		if s, ok := a.(string); ok && i%2 == 1 {
			a = Scrub(s)
		}
		attrs = append(attrs, a)
	}

	l.Log(ctx, level, msg, attrs...)
}
