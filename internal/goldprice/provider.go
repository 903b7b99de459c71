// Package goldprice fetches the gold spot price from a configured provider,
// normalizes it to the shop's unit and currency, and keeps the latest quote
// persisted and cached.
package goldprice

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/config"
)

type ProviderKind string

const (
	KindCustom    ProviderKind = "custom"
	KindMetalsAPI ProviderKind = "metals_api"
	KindMock      ProviderKind = "mock"
)

func ParseProviderKind(s string) (ProviderKind, error) {
	switch k := ProviderKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCustom, KindMetalsAPI, KindMock:
		return k, nil
	case "":
		return KindMock, nil
	}
	return "", fmt.Errorf("unknown gold price provider %q", s)
}

// RawQuote is a provider's answer before normalization.
type RawQuote struct {
	Provider ProviderKind    `json:"provider"`
	Bid      decimal.Decimal `json:"bid"`
	Ask      decimal.Decimal `json:"ask"`
	Unit     string          `json:"unit"`
	Currency string          `json:"currency"`
}

type Provider interface {
	Kind() ProviderKind
	Fetch(ctx context.Context) (RawQuote, error)
}

// NewProvider builds the provider named by cfg.Provider. A nil client gets
// one bounded by cfg.FetchTimeout.
func NewProvider(cfg config.GoldConfig, client *http.Client) (Provider, error) {
	kind, err := ParseProviderKind(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}

	switch kind {
	case KindCustom:
		if cfg.APIURL == "" {
			return nil, fmt.Errorf("GOLD_API_URL is required for the custom provider")
		}
		return &CustomProvider{
			URL:             cfg.APIURL,
			Token:           cfg.APIKey,
			DefaultUnit:     cfg.TargetUnit,
			DefaultCurrency: cfg.TargetCurrency,
			Client:          client,
		}, nil
	case KindMetalsAPI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GOLD_API_KEY is required for the metals_api provider")
		}
		return &MetalsAPIProvider{
			BaseURL:       cfg.APIURL,
			APIKey:        cfg.APIKey,
			Currency:      cfg.TargetCurrency,
			SpreadPercent: cfg.SpreadPercent,
			Client:        client,
		}, nil
	default:
		return &MockProvider{
			Bid:      cfg.MockBid,
			Ask:      cfg.MockAsk,
			Unit:     cfg.TargetUnit,
			Currency: cfg.TargetCurrency,
		}, nil
	}
}
