package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOLD_PROVIDER", "")
	t.Setenv("GOLD_EXCHANGE_RATES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Gold.Provider != "mock" {
		t.Errorf("Expected mock provider by default, got %q", cfg.Gold.Provider)
	}
	if cfg.Gold.CacheTTL != 60*time.Second {
		t.Errorf("Expected 60s cache TTL, got %s", cfg.Gold.CacheTTL)
	}
	if cfg.Gold.FetchTimeout != 30*time.Second {
		t.Errorf("Expected 30s fetch timeout, got %s", cfg.Gold.FetchTimeout)
	}
	if !cfg.Documents.PurchaseMarkupPercent.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected 20%% markup, got %s", cfg.Documents.PurchaseMarkupPercent)
	}
	if len(cfg.Gold.ExchangeRates) != 0 {
		t.Errorf("Expected no exchange rates, got %v", cfg.Gold.ExchangeRates)
	}
}

func TestLoadExchangeRates(t *testing.T) {
	t.Setenv("GOLD_EXCHANGE_RATES", "usd:0.92, GBP:1.17,broken,JPY:x")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Gold.ExchangeRates) != 2 {
		t.Fatalf("Expected 2 rates, got %v", cfg.Gold.ExchangeRates)
	}
	if !cfg.Gold.ExchangeRates["USD"].Equal(decimal.RequireFromString("0.92")) {
		t.Errorf("Expected USD 0.92, got %s", cfg.Gold.ExchangeRates["USD"])
	}
	if !cfg.Gold.ExchangeRates["GBP"].Equal(decimal.RequireFromString("1.17")) {
		t.Errorf("Expected GBP 1.17, got %s", cfg.Gold.ExchangeRates["GBP"])
	}
}

func TestLoadRejectsNegativePrecision(t *testing.T) {
	t.Setenv("GOLD_PRICE_PRECISION", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for negative precision")
	}
}

func TestLoadRejectsNonPositiveFetchTimeout(t *testing.T) {
	for _, value := range []string{"0s", "-5s"} {
		t.Setenv("GOLD_FETCH_TIMEOUT", value)

		if _, err := Load(); err == nil {
			t.Errorf("Expected error for GOLD_FETCH_TIMEOUT=%s", value)
		}
	}
}
