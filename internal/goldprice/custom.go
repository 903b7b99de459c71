package goldprice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/safar/gold-ledger/internal/apperr"
)

const maxBodyBytes = 1 << 20

// CustomProvider reads a JSON quote from an arbitrary endpoint that answers
// with bid/ask or buy/sell.
type CustomProvider struct {
	URL             string
	Token           string
	DefaultUnit     string
	DefaultCurrency string
	Client          *http.Client
}

type customBody struct {
	Bid      *decimal.Decimal `json:"bid"`
	Ask      *decimal.Decimal `json:"ask"`
	Buy      *decimal.Decimal `json:"buy"`
	Sell     *decimal.Decimal `json:"sell"`
	Unit     string           `json:"unit"`
	Currency string           `json:"currency"`
}

func (p *CustomProvider) Kind() ProviderKind { return KindCustom }

func (p *CustomProvider) Fetch(ctx context.Context) (RawQuote, error) {
	fail := func(op string, status int, err error) (RawQuote, error) {
		return RawQuote{}, &apperr.ExternalProviderError{Provider: string(KindCustom), Op: op, Status: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fail("build request", 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	body, status, err := doGet(p.Client, req)
	if err != nil {
		return fail("request", status, err)
	}

	var data customBody
	if err := json.Unmarshal(body, &data); err != nil {
		return fail("decode body", status, err)
	}

	bid := firstSet(data.Bid, data.Buy)
	ask := firstSet(data.Ask, data.Sell)
	if bid == nil || ask == nil {
		return fail("decode body", status, errors.New("response has no bid/ask or buy/sell"))
	}

	quote := RawQuote{
		Provider: KindCustom,
		Bid:      *bid,
		Ask:      *ask,
		Unit:     strings.ToLower(data.Unit),
		Currency: strings.ToUpper(data.Currency),
	}
	if quote.Unit == "" {
		quote.Unit = p.DefaultUnit
	}
	if quote.Currency == "" {
		quote.Currency = p.DefaultCurrency
	}
	return quote, nil
}

func firstSet(values ...*decimal.Decimal) *decimal.Decimal {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// doGet sends req and returns the body of a 2xx response.
func doGet(client *http.Client, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return body, resp.StatusCode, nil
}
