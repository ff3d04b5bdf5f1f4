package services

import (
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// GroupableItem is one active line item as seen by the grouping view.
type GroupableItem struct {
	ItemFigures
	Entry     PriceEntry
	SortOrder int
}

// DescriptionGroup collects the items of one price-list row that share a
// row description.
type DescriptionGroup struct {
	RowDescription string
	Items          []GroupableItem
	TotalQuantity  decimal.Decimal
	TotalAmount    decimal.Decimal
}

// PriceListGroup collects every item referencing one price-list entry.
type PriceListGroup struct {
	Entry         PriceEntry
	Descriptions  []DescriptionGroup
	TotalQuantity decimal.Decimal
	TotalAmount   decimal.Decimal
}

// GroupItemsByPriceList groups items by entry and then by row description.
// Groups are ordered by row number; items keep their insertion order.
// The result is a read-only projection and is never stored.
func GroupItemsByPriceList(items []GroupableItem) []PriceListGroup {
	ordered := make([]GroupableItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})

	var groups []PriceListGroup
	index := make(map[string]int)
	for _, it := range ordered {
		gi, ok := index[it.Entry.ID]
		if !ok {
			groups = append(groups, PriceListGroup{
				Entry:         it.Entry,
				TotalQuantity: decimal.Zero,
				TotalAmount:   decimal.Zero,
			})
			gi = len(groups) - 1
			index[it.Entry.ID] = gi
		}
		g := &groups[gi]
		g.TotalQuantity = g.TotalQuantity.Add(it.Quantity)
		g.TotalAmount = g.TotalAmount.Add(it.Total)

		di := -1
		for k := range g.Descriptions {
			if g.Descriptions[k].RowDescription == it.RowDescription {
				di = k
				break
			}
		}
		if di < 0 {
			g.Descriptions = append(g.Descriptions, DescriptionGroup{
				RowDescription: it.RowDescription,
				TotalQuantity:  decimal.Zero,
				TotalAmount:    decimal.Zero,
			})
			di = len(g.Descriptions) - 1
		}
		d := &g.Descriptions[di]
		d.Items = append(d.Items, it)
		d.TotalQuantity = d.TotalQuantity.Add(it.Quantity)
		d.TotalAmount = d.TotalAmount.Add(it.Total)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return CompareRowNumbers(groups[i].Entry.RowNumber, groups[j].Entry.RowNumber) < 0
	})
	return groups
}

// CompareRowNumbers orders chapter-coded row numbers numerically when both
// are plain digit strings, and lexically otherwise.
func CompareRowNumbers(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	ai, aok := new(big.Int).SetString(a, 10)
	bi, bok := new(big.Int).SetString(b, 10)
	if aok && bok {
		return ai.Cmp(bi)
	}
	return strings.Compare(a, b)
}
