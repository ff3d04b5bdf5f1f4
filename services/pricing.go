package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// PriceFieldCandidates is the probe order for a unit price in raw price-list
// data coming from heterogeneous import sources.
var PriceFieldCandidates = []string{"price", "unit_price", "rate", "baha"}

// ResolveUnitPrice returns the first present, non-nil and parseable candidate
// from fields, quantized to 2 places. It returns zero when nothing resolves.
func ResolveUnitPrice(fields map[string]any) decimal.Decimal {
	for _, name := range PriceFieldCandidates {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		d, err := ParseDecimal(v)
		if err != nil {
			return decimal.Zero
		}
		return d.RoundBank(2)
	}
	return decimal.Zero
}

// ParseDecimal coerces an imported cell value into a decimal. Strings may
// carry thousands separators, Persian or Arabic-Indic digits and the Persian
// decimal separator.
func ParseDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, fmt.Errorf("nil decimal")
		}
		return *x, nil
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coerce %T: %w", v, err)
	}
	s = normalizeNumeric(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	return decimal.NewFromString(s)
}

// normalizeNumeric maps Persian/Arabic digits to ASCII and drops grouping
// characters and spaces.
func normalizeNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r == '٫':
			b.WriteRune('.')
		case r == ',' || r == '٬' || r == '،' || r == ' ' || r == '\u00a0' || r == '_':
			// grouping
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ComputeItemTotal is quantity × unitPrice at full precision.
func ComputeItemTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// ItemFigures is the derived state of one line item.
type ItemFigures struct {
	ItemID         string
	EntryID        string
	RowDescription string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	Total          decimal.Decimal
}

// PriceItem recomputes quantity and total for a line item. unitPrice is the
// value already stored on the item. A missing or zero price is provisional
// and is taken from the entry on every call.
func PriceItem(entry *PriceEntry, d Dimensions, unitPrice decimal.NullDecimal) ItemFigures {
	price := unitPrice.Decimal
	if !unitPrice.Valid || unitPrice.Decimal.IsZero() {
		price = decimal.Zero
		if entry != nil {
			price = entry.UnitPrice
		}
	}
	qty := QuantityForEntry(entry, d)
	f := ItemFigures{
		Quantity:  qty,
		UnitPrice: price,
		Total:     ComputeItemTotal(qty, price),
	}
	if entry != nil {
		f.EntryID = entry.ID
	}
	return f
}
