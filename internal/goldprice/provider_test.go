package goldprice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/config"
)

func TestParseProviderKind(t *testing.T) {
	for in, want := range map[string]ProviderKind{"custom": KindCustom, " Metals_API ": KindMetalsAPI, "": KindMock} {
		got, err := ParseProviderKind(in)
		if err != nil || got != want {
			t.Errorf("ParseProviderKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseProviderKind("goldapi"); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestNewProviderRequiresSettings(t *testing.T) {
	if _, err := NewProvider(config.GoldConfig{Provider: "custom"}, nil); err == nil {
		t.Error("Custom provider without URL should fail")
	}
	if _, err := NewProvider(config.GoldConfig{Provider: "metals_api"}, nil); err == nil {
		t.Error("Metals API provider without key should fail")
	}

	p, err := NewProvider(config.GoldConfig{Provider: "mock", MockBid: decimal.NewFromInt(50), MockAsk: decimal.NewFromInt(51)}, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Kind() != KindMock {
		t.Errorf("Expected mock provider, got %s", p.Kind())
	}
}

func TestCustomProviderBidAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Expected JSON accept header, got %q", got)
		}
		w.Write([]byte(`{"bid": 2000, "ask": "2010.5", "unit": "oz", "currency": "usd"}`))
	}))
	defer srv.Close()

	p := &CustomProvider{URL: srv.URL, Token: "secret", DefaultUnit: "g", DefaultCurrency: "EUR", Client: srv.Client()}
	q, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if !q.Bid.Equal(decimal.NewFromInt(2000)) || !q.Ask.Equal(decimal.RequireFromString("2010.5")) {
		t.Errorf("Unexpected prices: %+v", q)
	}
	if q.Unit != "oz" || q.Currency != "USD" {
		t.Errorf("Unexpected unit/currency: %s %s", q.Unit, q.Currency)
	}
}

func TestCustomProviderBuySellDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("No token configured, expected no Authorization header")
		}
		w.Write([]byte(`{"buy": 63.2, "sell": 64.9}`))
	}))
	defer srv.Close()

	p := &CustomProvider{URL: srv.URL, DefaultUnit: "g", DefaultCurrency: "EUR", Client: srv.Client()}
	q, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !q.Bid.Equal(decimal.RequireFromString("63.2")) || !q.Ask.Equal(decimal.RequireFromString("64.9")) {
		t.Errorf("Unexpected prices: %+v", q)
	}
	if q.Unit != "g" || q.Currency != "EUR" {
		t.Errorf("Expected configured defaults, got %s %s", q.Unit, q.Currency)
	}
}

func TestCustomProviderFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{"bid": 1, "ask": 2}`},
		{"malformed", http.StatusOK, `{"bid": `},
		{"missing ask", http.StatusOK, `{"bid": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := &CustomProvider{URL: srv.URL, Client: srv.Client()}
			_, err := p.Fetch(context.Background())
			if !apperr.IsExternalProvider(err) {
				t.Errorf("Expected ExternalProviderError, got: %v", err)
			}
		})
	}
}

func TestCustomProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := &CustomProvider{URL: srv.URL, Client: srv.Client()}
	if _, err := p.Fetch(ctx); !apperr.IsExternalProvider(err) {
		t.Errorf("Expected ExternalProviderError on timeout, got: %v", err)
	}
}

func TestMetalsAPIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("access_key") != "k" || q.Get("base") != "EUR" || q.Get("symbols") != "XAU" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"success": true, "rates": {"XAU": 2000}}`))
	}))
	defer srv.Close()

	p := &MetalsAPIProvider{BaseURL: srv.URL, APIKey: "k", Currency: "EUR", SpreadPercent: decimal.NewFromInt(2), Client: srv.Client()}
	q, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if q.Unit != "g" || q.Currency != "EUR" {
		t.Errorf("Unexpected unit/currency: %s %s", q.Unit, q.Currency)
	}
	if got := q.Bid.Round(4); !got.Equal(decimal.RequireFromString("63.0155")) {
		t.Errorf("Expected bid 63.0155, got %s", got)
	}
	if got := q.Ask.Round(4); !got.Equal(decimal.RequireFromString("65.5875")) {
		t.Errorf("Expected ask 65.5875, got %s", got)
	}
}

func TestMetalsAPIProviderErrors(t *testing.T) {
	for name, body := range map[string]string{
		"not successful": `{"success": false, "error": {"code": 101, "info": "invalid key"}}`,
		"no gold rate":   `{"success": true, "rates": {"XAG": 24}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			p := &MetalsAPIProvider{BaseURL: srv.URL, APIKey: "k", Currency: "EUR", Client: srv.Client()}
			if _, err := p.Fetch(context.Background()); !apperr.IsExternalProvider(err) {
				t.Errorf("Expected ExternalProviderError, got: %v", err)
			}
		})
	}
}
