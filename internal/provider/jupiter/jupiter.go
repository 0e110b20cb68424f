// Package jupiter reads token prices from the Jupiter price aggregator and
// normalizes its payload versions to domain.TokenPrice.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
)

const (
	Timeout = 10 * time.Second

	maxBody = 1 << 20
)

type Config struct {
	BaseURL   string
	UserAgent string
	// RPS throttles outbound calls to stay inside the aggregator's quota.
	RPS        float64
	HTTPClient *http.Client
}

type Provider struct {
	baseURL string
	client  *httputil.Client
}

func New(cfg Config) *Provider {
	opts := []httputil.Option{
		httputil.WithUserAgent(cfg.UserAgent),
		httputil.WithRateLimit(cfg.RPS, int(math.Max(1, math.Ceil(cfg.RPS)))),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, httputil.WithHTTPClient(cfg.HTTPClient))
	}

	return &Provider{
		baseURL: cfg.BaseURL,
		client:  httputil.New("jupiter", opts...),
	}
}

// Prices fetches ids and returns one entry per requested id, with nil fields
// for ids the aggregator did not price.
func (p *Provider) Prices(ctx context.Context, ids []string) (domain.PriceReply, error) {
	endpoint := p.baseURL + "?ids=" + url.QueryEscape(strings.Join(ids, ","))

	resp, err := p.client.Do(ctx, httputil.Request{
		Method:  http.MethodGet,
		URL:     endpoint,
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

	return Normalize(data, ids)
}

// Normalize accepts both the flat v3 shape ({id: {usdPrice, decimals,
// priceChange24h}}) and the wrapped v2 shape ({data: {id: {price: "1.23"}}}).
func Normalize(raw []byte, ids []string) (domain.PriceReply, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return nil, fmt.Errorf("price payload: %w", domain.ErrBadPayload)
	}

	entries := top
	if wrapped, ok := top["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(wrapped, &inner); err == nil && inner != nil {
			entries = inner
		}
	}

	reply := make(domain.PriceReply, len(ids))
	for _, id := range ids {
		reply[id] = normalizeEntry(entries[id])
	}
	return reply, nil
}

func normalizeEntry(raw json.RawMessage) domain.TokenPrice {
	var fields map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil {
		return domain.TokenPrice{}
	}

	var tp domain.TokenPrice
	if v, ok := toFloat(fields["usdPrice"]); ok {
		tp.USDPrice = &v
	} else if v, ok := toFloat(fields["price"]); ok {
		tp.USDPrice = &v
	}
	if v, ok := toFloat(fields["decimals"]); ok && v == math.Trunc(v) {
		d := int(v)
		tp.Decimals = &d
	}
	if v, ok := toFloat(fields["priceChange24h"]); ok {
		tp.PriceChange24h = &v
	}
	return tp
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
