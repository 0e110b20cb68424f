package jupiter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felipepmaragno/solmate-api/internal/domain"
	"github.com/felipepmaragno/solmate-api/internal/httputil"
)

const usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func TestNormalize_V3(t *testing.T) {
	raw := []byte(`{
		"So11111111111111111111111111111111111111112": {"usdPrice": 147.5, "blockId": 1, "decimals": 9, "priceChange24h": -2.25}
	}`)

	reply, err := Normalize(raw, []string{domain.DefaultTokenID, usdc})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	sol := reply[domain.DefaultTokenID]
	if sol.USDPrice == nil || *sol.USDPrice != 147.5 {
		t.Errorf("usdPrice = %v", sol.USDPrice)
	}
	if sol.Decimals == nil || *sol.Decimals != 9 {
		t.Errorf("decimals = %v", sol.Decimals)
	}
	if sol.PriceChange24h == nil || *sol.PriceChange24h != -2.25 {
		t.Errorf("priceChange24h = %v", sol.PriceChange24h)
	}

	missing, ok := reply[usdc]
	if !ok {
		t.Fatal("requested id missing from reply")
	}
	if missing.USDPrice != nil || missing.Decimals != nil || missing.PriceChange24h != nil {
		t.Errorf("unpriced id should have nil fields, got %+v", missing)
	}
}

func TestNormalize_V2Wrapped(t *testing.T) {
	raw := []byte(`{"data": {"` + usdc + `": {"id": "x", "type": "derivedPrice", "price": "0.9998"}}, "timeTaken": 0.01}`)

	reply, err := Normalize(raw, []string{usdc})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if p := reply[usdc].USDPrice; p == nil || *p != 0.9998 {
		t.Errorf("usdPrice = %v, want 0.9998 from price field", p)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	for _, raw := range []string{`nope`, `[1,2]`, `null`} {
		if _, err := Normalize([]byte(raw), []string{usdc}); !errors.Is(err, domain.ErrBadPayload) {
			t.Errorf("Normalize(%s) error = %v, want ErrBadPayload", raw, err)
		}
	}
}

func TestNormalize_IgnoresJunkValues(t *testing.T) {
	raw := []byte(`{"` + usdc + `": {"usdPrice": "abc", "price": true, "decimals": 6.5, "priceChange24h": null}}`)

	reply, err := Normalize(raw, []string{usdc})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	got := reply[usdc]
	if got.USDPrice != nil || got.Decimals != nil || got.PriceChange24h != nil {
		t.Errorf("junk fields should normalize to nil, got %+v", got)
	}
}

func TestPrices_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != domain.DefaultTokenID+","+usdc {
			t.Errorf("ids = %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua != "Solmate/test" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte(`{"` + usdc + `": {"usdPrice": 1}}`))
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, UserAgent: "Solmate/test", RPS: 100})
	reply, err := p.Prices(context.Background(), []string{domain.DefaultTokenID, usdc})
	if err != nil {
		t.Fatalf("Prices() error = %v", err)
	}
	if len(reply) != 2 {
		t.Errorf("len(reply) = %d, want 2", len(reply))
	}
}

func TestPrices_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL})
	_, err := p.Prices(context.Background(), []string{usdc})
	if !httputil.IsStatus(err, http.StatusTooManyRequests) {
		t.Errorf("error = %v, want upstream 429", err)
	}
}
