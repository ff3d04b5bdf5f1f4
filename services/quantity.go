// Package services provides the quantity, pricing and aggregation rules for
// measurement sessions. Everything in here is pure: callers load records,
// hand the figures in, and persist what comes back.
package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UnitKind is the measuring rule a unit-of-measure string resolves to.
type UnitKind int

const (
	UnitUnknown UnitKind = iota
	UnitArea
	UnitVolume
	UnitMass
	UnitLength
	UnitPiece
)

func (k UnitKind) String() string {
	switch k {
	case UnitArea:
		return "area"
	case UnitVolume:
		return "volume"
	case UnitMass:
		return "mass"
	case UnitLength:
		return "length"
	case UnitPiece:
		return "piece"
	}
	return "unknown"
}

// unitRules is checked top to bottom and the first rule with a matching
// token wins. Area and volume must come before length since "متر مربع"
// and "cubic meter" both contain the length token.
var unitRules = []struct {
	kind   UnitKind
	tokens []string
}{
	{UnitArea, []string{"متر مربع", "مترمربع", "square meter", "square metre", "sq m", "sqm", "m2", "m²"}},
	{UnitVolume, []string{"متر مکعب", "مترمکعب", "cubic meter", "cubic metre", "cbm", "m3", "m³"}},
	{UnitMass, []string{"کیلوگرم", "kilogram", "kg"}},
	{UnitLength, []string{"متر", "meter", "metre"}},
	{UnitPiece, []string{"عدد", "each", "number", "nos", "pcs"}},
}

// ClassifyUnit matches unit case-insensitively by substring.
func ClassifyUnit(unit string) UnitKind {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return UnitUnknown
	}
	for _, rule := range unitRules {
		for _, tok := range rule.tokens {
			if strings.Contains(u, tok) {
				return rule.kind
			}
		}
	}
	return UnitUnknown
}

// Dimensions are the raw measured fields of a line item. Absent values are
// left invalid and count as zero in any multiplication.
type Dimensions struct {
	Length decimal.NullDecimal
	Width  decimal.NullDecimal
	Height decimal.NullDecimal
	Weight decimal.NullDecimal
	Count  decimal.Decimal
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// ComputeQuantity returns the billable quantity for unit. Unrecognised units
// fall back to the count alone. No rounding is applied.
func ComputeQuantity(unit string, d Dimensions) decimal.Decimal {
	count := d.Count
	switch ClassifyUnit(unit) {
	case UnitArea:
		return count.Mul(orZero(d.Length)).Mul(orZero(d.Width))
	case UnitVolume:
		return count.Mul(orZero(d.Length)).Mul(orZero(d.Width)).Mul(orZero(d.Height))
	case UnitMass:
		return count.Mul(orZero(d.Weight))
	case UnitLength:
		return count.Mul(orZero(d.Length))
	default:
		return count
	}
}

// PriceEntry is the slice of a price-list entry the calculators need.
type PriceEntry struct {
	ID          string
	RowNumber   string
	Description string
	Unit        string
	UnitPrice   decimal.Decimal
}

// QuantityForEntry is ComputeQuantity with the entry's unit. A missing entry
// yields zero.
func QuantityForEntry(entry *PriceEntry, d Dimensions) decimal.Decimal {
	if entry == nil {
		return decimal.Zero
	}
	return ComputeQuantity(entry.Unit, d)
}
