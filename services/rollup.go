package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// RollupRow is one active line item referencing the price-list entry being
// rolled up.
type RollupRow struct {
	ItemID    string
	SessionID string
	ProjectID string
	Quantity  decimal.Decimal
	Amount    decimal.Decimal
	UsedAt    time.Time
}

// Rollup is the lifetime usage of one price-list entry.
type Rollup struct {
	TotalQuantity decimal.Decimal
	TotalAmount   decimal.Decimal
	SessionsCount int
	RowsCount     int
	ProjectsCount int
	FirstUsed     time.Time
	LastUsed      time.Time
}

// ComputeRollup derives a rollup from ground truth. There is no incremental
// path: every rebuild rescans all rows.
func ComputeRollup(rows []RollupRow) Rollup {
	r := Rollup{TotalQuantity: decimal.Zero, TotalAmount: decimal.Zero}
	sessions := make(map[string]struct{})
	projects := make(map[string]struct{})
	for _, row := range rows {
		r.TotalQuantity = r.TotalQuantity.Add(row.Quantity)
		r.TotalAmount = r.TotalAmount.Add(row.Amount)
		r.RowsCount++
		sessions[row.SessionID] = struct{}{}
		if row.ProjectID != "" {
			projects[row.ProjectID] = struct{}{}
		}
		if row.UsedAt.IsZero() {
			continue
		}
		if r.FirstUsed.IsZero() || row.UsedAt.Before(r.FirstUsed) {
			r.FirstUsed = row.UsedAt
		}
		if row.UsedAt.After(r.LastUsed) {
			r.LastUsed = row.UsedAt
		}
	}
	r.SessionsCount = len(sessions)
	r.ProjectsCount = len(projects)
	return r
}
