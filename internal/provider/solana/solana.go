// Package solana queries a Solana JSON-RPC node for network throughput.
package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
)

const (
	Timeout = 10 * time.Second

	// MaxPlausibleTPS bounds computed throughput; anything outside 0..MaxPlausibleTPS is discarded.
	MaxPlausibleTPS = 100_000

	maxBody = 256 << 10
)

type Config struct {
	RPCURL     string
	UserAgent  string
	HTTPClient *http.Client
}

type Provider struct {
	rpcURL string
	client *httputil.Client
	nextID atomic.Uint64
}

func New(cfg Config) *Provider {
	opts := []httputil.Option{httputil.WithUserAgent(cfg.UserAgent)}
	if cfg.HTTPClient != nil {
		opts = append(opts, httputil.WithHTTPClient(cfg.HTTPClient))
	}
	return &Provider{
		rpcURL: cfg.RPCURL,
		client: httputil.New("solana", opts...),
	}
}

func (p *Provider) Configured() bool {
	return p != nil && p.rpcURL != ""
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// RecentPerformanceSamples returns the newest `limit` samples, newest first.
func (p *Provider) RecentPerformanceSamples(ctx context.Context, limit int) ([]domain.PerformanceSample, error) {
	if !p.Configured() {
		return nil, domain.ErrNotConfigured
	}

	resp, err := p.client.Do(ctx, httputil.Request{
		Method: http.MethodPost,
		URL:    p.rpcURL,
		Body: rpcRequest{
			JSONRPC: "2.0",
			ID:      p.nextID.Add(1),
			Method:  "getRecentPerformanceSamples",
			Params:  []any{limit},
		},
		Accept:  "application/json",
		Timeout: Timeout,
	})
	if err != nil {
		return nil, err
	}

	data, err := p.client.ReadAll(ctx, resp, maxBody)
	if err != nil {
		return nil, err
	}

	var out rpcResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("rpc envelope: %w", domain.ErrBadPayload)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("rpc error %d %q: %w", out.Error.Code, out.Error.Message, domain.ErrBadPayload)
	}

	var samples []domain.PerformanceSample
	if err := json.Unmarshal(out.Result, &samples); err != nil {
		return nil, fmt.Errorf("rpc result: %w", domain.ErrBadPayload)
	}
	return samples, nil
}

// TPS is round(numTransactions / samplePeriodSecs). ok is false for a zero
// period or a result outside the plausible range.
func TPS(s domain.PerformanceSample) (tps int64, ok bool) {
	if s.SamplePeriodSecs == 0 {
		return 0, false
	}
	v := math.Round(float64(s.NumTransactions) / float64(s.SamplePeriodSecs))
	if v < 0 || v > MaxPlausibleTPS {
		return 0, false
	}
	return int64(v), true
}
