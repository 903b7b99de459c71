package goldprice

import (
	"context"

	"github.com/shopspring/decimal"
)

// MockProvider always answers with the configured prices.
type MockProvider struct {
	Bid      decimal.Decimal
	Ask      decimal.Decimal
	Unit     string
	Currency string
}

func (p *MockProvider) Kind() ProviderKind { return KindMock }

func (p *MockProvider) Fetch(ctx context.Context) (RawQuote, error) {
	if err := ctx.Err(); err != nil {
		return RawQuote{}, err
	}
	return RawQuote{Provider: KindMock, Bid: p.Bid, Ask: p.Ask, Unit: p.Unit, Currency: p.Currency}, nil
}
