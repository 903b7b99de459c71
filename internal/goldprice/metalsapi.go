package goldprice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/models"
)

const DefaultMetalsAPIBaseURL = "https://metals-api.com/api"

// MetalsAPIProvider queries metals-api.com for XAU, treats the rate as a
// per-ounce mid price and widens it by SpreadPercent on each side.
type MetalsAPIProvider struct {
	BaseURL       string
	APIKey        string
	Currency      string
	SpreadPercent decimal.Decimal
	Client        *http.Client
}

type metalsAPIBody struct {
	Success bool                       `json:"success"`
	Rates   map[string]decimal.Decimal `json:"rates"`
	Error   *struct {
		Code int    `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

func (p *MetalsAPIProvider) Kind() ProviderKind { return KindMetalsAPI }

func (p *MetalsAPIProvider) Fetch(ctx context.Context) (RawQuote, error) {
	fail := func(op string, status int, err error) (RawQuote, error) {
		return RawQuote{}, &apperr.ExternalProviderError{Provider: string(KindMetalsAPI), Op: op, Status: status, Err: err}
	}

	base := p.BaseURL
	if base == "" {
		base = DefaultMetalsAPIBaseURL
	}
	params := url.Values{}
	params.Set("access_key", p.APIKey)
	params.Set("base", p.Currency)
	params.Set("symbols", "XAU")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/latest?"+params.Encode(), nil)
	if err != nil {
		return fail("build request", 0, err)
	}
	req.Header.Set("Accept", "application/json")

	body, status, err := doGet(p.Client, req)
	if err != nil {
		return fail("request", status, err)
	}

	var data metalsAPIBody
	if err := json.Unmarshal(body, &data); err != nil {
		return fail("decode body", status, err)
	}
	if !data.Success {
		info := "unknown error"
		if data.Error != nil && data.Error.Info != "" {
			info = data.Error.Info
		}
		return fail("latest", status, errors.New(info))
	}

	perOunce, ok := data.Rates["XAU"]
	if !ok || !perOunce.IsPositive() {
		return fail("latest", status, errors.New("gold rate missing from response"))
	}

	mid := perOunce.Div(GramsPerTroyOunce)
	spread := p.SpreadPercent.Div(decimal.NewFromInt(100))
	one := decimal.NewFromInt(1)

	return RawQuote{
		Provider: KindMetalsAPI,
		Bid:      mid.Mul(one.Sub(spread)),
		Ask:      mid.Mul(one.Add(spread)),
		Unit:     models.UnitGram,
		Currency: strings.ToUpper(p.Currency),
	}, nil
}
