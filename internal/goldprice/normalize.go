package goldprice

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/models"
)

var GramsPerTroyOunce = decimal.RequireFromString("31.1034768")

// Normalizer converts raw quotes to the target unit and currency and rounds
// them to Precision decimals. Conversions it cannot perform pass through
// with a warning.
type Normalizer struct {
	TargetUnit     string
	TargetCurrency string
	// Rates convert one unit of the keyed currency into TargetCurrency.
	Rates     map[string]decimal.Decimal
	Precision int32
	logger    *logrus.Logger
}

func NewNormalizer(unit, currency string, rates map[string]decimal.Decimal, precision int32, logger *logrus.Logger) *Normalizer {
	return &Normalizer{
		TargetUnit:     strings.ToLower(unit),
		TargetCurrency: strings.ToUpper(currency),
		Rates:          rates,
		Precision:      precision,
		logger:         logging.OrDiscard(logger),
	}
}

func (n *Normalizer) Normalize(raw RawQuote) RawQuote {
	out := raw
	out.Unit = strings.ToLower(raw.Unit)
	out.Currency = strings.ToUpper(raw.Currency)

	if out.Unit == models.UnitOunce && n.TargetUnit == models.UnitGram {
		out.Bid = out.Bid.Div(GramsPerTroyOunce)
		out.Ask = out.Ask.Div(GramsPerTroyOunce)
		out.Unit = models.UnitGram
	} else if out.Unit != n.TargetUnit {
		n.logger.WithFields(logrus.Fields{
			"module":   "goldprice",
			"provider": raw.Provider,
			"unit":     raw.Unit,
			"target":   n.TargetUnit,
		}).Warn("no unit conversion available; keeping provider unit")
	}

	if out.Currency != n.TargetCurrency {
		if rate, ok := n.Rates[out.Currency]; ok {
			out.Bid = out.Bid.Mul(rate)
			out.Ask = out.Ask.Mul(rate)
			out.Currency = n.TargetCurrency
		} else {
			n.logger.WithFields(logrus.Fields{
				"module":   "goldprice",
				"provider": raw.Provider,
				"currency": raw.Currency,
				"target":   n.TargetCurrency,
			}).Warn("no exchange rate configured; keeping provider currency")
		}
	}

	out.Bid = out.Bid.Round(n.Precision)
	out.Ask = out.Ask.Round(n.Precision)
	return out
}
