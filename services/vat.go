package services

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DefaultVATRate is the VAT percent applied when neither the session nor the
// configuration says otherwise.
var DefaultVATRate = decimal.RequireFromString("9.00")

// VATAmount is amount × rate / 100.
func VATAmount(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred)
}

// WithVAT is amount × (1 + rate/100).
func WithVAT(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Add(ratePercent.Div(hundred)))
}
