package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SessionStatus is the derived financial state of one measurement session.
type SessionStatus struct {
	TotalQuantity             decimal.Decimal
	TotalAmount               decimal.Decimal
	ActiveItemsCount          int
	UniquePriceListItemsCount int
	RowDescriptionsCount      int
	VATRate                   decimal.Decimal
	TotalWithVAT              decimal.Decimal
}

// ComputeSessionStatus recomputes a session status from scratch. items must
// already be limited to active line items. Calling it twice on the same input
// yields identical values.
func ComputeSessionStatus(items []ItemFigures, vatRate decimal.Decimal) SessionStatus {
	st := SessionStatus{
		TotalQuantity: decimal.Zero,
		TotalAmount:   decimal.Zero,
		VATRate:       vatRate,
	}

	entries := make(map[string]struct{})
	descriptions := make(map[string]struct{})
	for _, it := range items {
		st.TotalQuantity = st.TotalQuantity.Add(it.Quantity)
		st.TotalAmount = st.TotalAmount.Add(it.Total)
		st.ActiveItemsCount++
		if it.EntryID != "" {
			entries[it.EntryID] = struct{}{}
		}
		if desc := strings.TrimSpace(it.RowDescription); desc != "" {
			descriptions[desc] = struct{}{}
		}
	}
	st.UniquePriceListItemsCount = len(entries)
	st.RowDescriptionsCount = len(descriptions)
	st.TotalWithVAT = WithVAT(st.TotalAmount, vatRate)
	return st
}
