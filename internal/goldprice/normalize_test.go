package goldprice

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeOuncesToGrams(t *testing.T) {
	n := NewNormalizer("g", "EUR", nil, 4, nil)

	out := n.Normalize(RawQuote{
		Provider: KindCustom,
		Bid:      decimal.NewFromInt(2000),
		Ask:      decimal.NewFromInt(2010),
		Unit:     "oz",
		Currency: "EUR",
	})

	if out.Unit != "g" {
		t.Errorf("Expected unit g, got %s", out.Unit)
	}
	if !out.Bid.Equal(decimal.RequireFromString("64.3015")) {
		t.Errorf("Expected bid 64.3015, got %s", out.Bid)
	}
	if !out.Ask.Equal(decimal.RequireFromString("64.6230")) {
		t.Errorf("Expected ask 64.6230, got %s", out.Ask)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	rates := map[string]decimal.Decimal{"USD": decimal.RequireFromString("0.92")}
	n := NewNormalizer("g", "EUR", rates, 2, nil)

	out := n.Normalize(RawQuote{Bid: decimal.NewFromInt(70), Ask: decimal.NewFromInt(71), Unit: "g", Currency: "usd"})
	if out.Currency != "EUR" {
		t.Errorf("Expected EUR, got %s", out.Currency)
	}
	if !out.Bid.Equal(decimal.RequireFromString("64.40")) || !out.Ask.Equal(decimal.RequireFromString("65.32")) {
		t.Errorf("Unexpected converted prices: %s / %s", out.Bid, out.Ask)
	}
}

func TestNormalizeUnknownPassesThrough(t *testing.T) {
	n := NewNormalizer("g", "EUR", nil, 4, nil)

	out := n.Normalize(RawQuote{Bid: decimal.RequireFromString("1.234567"), Ask: decimal.NewFromInt(2), Unit: "kg", Currency: "CHF"})
	if out.Unit != "kg" || out.Currency != "CHF" {
		t.Errorf("Expected unconvertible unit/currency kept, got %s %s", out.Unit, out.Currency)
	}
	if !out.Bid.Equal(decimal.RequireFromString("1.2346")) {
		t.Errorf("Expected rounding to still apply, got %s", out.Bid)
	}
}

func TestNormalizeGramsTargetOuncesPassesThrough(t *testing.T) {
	n := NewNormalizer("oz", "EUR", nil, 2, nil)

	out := n.Normalize(RawQuote{Bid: decimal.NewFromInt(64), Ask: decimal.NewFromInt(65), Unit: "g", Currency: "EUR"})
	if out.Unit != "g" || !out.Bid.Equal(decimal.NewFromInt(64)) {
		t.Errorf("Expected grams kept unconverted, got %s %s", out.Bid, out.Unit)
	}
}
