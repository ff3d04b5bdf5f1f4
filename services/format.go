package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders d rounded to places decimals with its integer part
// grouped in thousands (e.g. 1,234,567.50). Stored values are never
// formatted; this is for operator-facing output only.
func FormatAmount(d decimal.Decimal, places int32) string {
	negative := d.IsNegative()
	raw := d.Abs().StringFixed(places)

	intPart, decPart, hasDec := strings.Cut(raw, ".")
	result := applyThousandsGrouping(intPart)
	if hasDec {
		result += "." + decPart
	}
	if negative && !d.Abs().Round(places).IsZero() {
		result = "-" + result
	}
	return result
}

// applyThousandsGrouping inserts a comma every three digits from the right.
func applyThousandsGrouping(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
