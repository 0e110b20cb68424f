package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/felipepmaragno/solmate-api/internal/metrics"
	"github.com/felipepmaragno/solmate-api/internal/telemetry"
)

const maxErrorBody = 64 << 10

// Client is the one way handlers talk to upstream services. It never retries;
// retry policy belongs to the caller.
type Client struct {
	name      string
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit throttles outbound calls to rps with the given burst. Waiting
// respects the call deadline.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func New(name string, opts ...Option) *Client {
	c := &Client{
		name:      name,
		http:      DefaultClient(),
		userAgent: "Solmate/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return c.name
}

type Request struct {
	Method string
	URL    string
	// Body is JSON-encoded when non-nil.
	Body    any
	Bearer  string
	Accept  string
	Timeout time.Duration
}

// Do performs one exchange bounded by req.Timeout. On success the caller owns
// resp.Body and must close it; closing also releases the deadline. Any status
// of 400 or above is returned as a KindHTTP *Error carrying the body.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "upstream."+c.name)
	defer span.End()
	span.SetAttributes(
		attribute.String("upstream", c.name),
		attribute.String("http.method", req.Method),
	)

	cancel := context.CancelFunc(func() {})
	if req.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		// Classify before cancel, or every failure reads as a deadline.
		ue := Classify(ctx, c.name, err)
		cancel()
		c.observe(start, string(ue.Kind))
		span.SetStatus(codes.Error, ue.Error())
		return nil, ue
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		c.observe(start, string(KindHTTP))
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return nil, &Error{Kind: KindHTTP, Upstream: c.name, Status: resp.StatusCode, Body: body}
	}

	c.observe(start, "ok")
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline cannot be met; that is a timeout.
			return nil, fmt.Errorf("outbound throttle: %v: %w", err, context.DeadlineExceeded)
		}
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if req.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Bearer)
	}

	return c.http.Do(httpReq)
}

func (c *Client) observe(start time.Time, outcome string) {
	metrics.RecordUpstream(c.name, outcome, time.Since(start).Seconds())
}

// ReadAll reads a successful body up to max bytes and closes it. Read failures
// are classified like transport failures.
func (c *Client) ReadAll(ctx context.Context, resp *http.Response, max int64) ([]byte, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, max))
	if err != nil {
		return nil, Classify(ctx, c.name, err)
	}
	return data, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
