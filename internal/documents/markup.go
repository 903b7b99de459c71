package documents

import "github.com/shopspring/decimal"

// MarkupPolicy derives an item's sale price from the price paid for it.
type MarkupPolicy func(purchase decimal.Decimal) decimal.Decimal

var hundred = decimal.NewFromInt(100)

// PercentMarkup adds p percent and rounds to cents.
func PercentMarkup(p decimal.Decimal) MarkupPolicy {
	factor := decimal.NewFromInt(1).Add(p.Div(hundred))
	return func(purchase decimal.Decimal) decimal.Decimal {
		return purchase.Mul(factor).Round(2)
	}
}
