package services

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SessionRollupInput is one active session's stored financial status.
type SessionRollupInput struct {
	SessionID     string
	Discipline    Discipline
	TotalQuantity decimal.Decimal
	TotalAmount   decimal.Decimal
	TotalWithVAT  decimal.Decimal
	ActiveItems   int
	Approved      bool
}

// DisciplineTotals is one bucket of the per-discipline breakdown.
type DisciplineTotals struct {
	Discipline    Discipline
	Quantity      decimal.Decimal
	Amount        decimal.Decimal
	SessionsCount int
}

// ProjectSummary is the derived project-level financial state.
type ProjectSummary struct {
	TotalQuantity         decimal.Decimal
	TotalAmount           decimal.Decimal
	TotalWithVAT          decimal.Decimal
	Civil                 DisciplineTotals
	Mechanical            DisciplineTotals
	Electrical            DisciplineTotals
	Breakdown             []DisciplineTotals
	ProgressPercentage    decimal.Decimal
	OverBilled            bool
	SessionsCount         int
	ApprovedSessionsCount int
	ItemsCount            int
	UniqueItemsCount      int
}

func emptyBucket(d Discipline) DisciplineTotals {
	return DisciplineTotals{Discipline: d, Quantity: decimal.Zero, Amount: decimal.Zero}
}

// ComputeProjectSummary rolls session statuses up to the project.
// uniqueItems is the number of distinct price-list entries referenced by the
// project's active items. Progress is total/contract × 100, zero when the
// contract amount is not positive, and is never clamped.
func ComputeProjectSummary(sessions []SessionRollupInput, uniqueItems int, contractAmount decimal.Decimal) ProjectSummary {
	sum := ProjectSummary{
		TotalQuantity:      decimal.Zero,
		TotalAmount:        decimal.Zero,
		TotalWithVAT:       decimal.Zero,
		ProgressPercentage: decimal.Zero,
		UniqueItemsCount:   uniqueItems,
	}

	buckets := make(map[Discipline]*DisciplineTotals)
	for _, s := range sessions {
		sum.TotalQuantity = sum.TotalQuantity.Add(s.TotalQuantity)
		sum.TotalAmount = sum.TotalAmount.Add(s.TotalAmount)
		sum.TotalWithVAT = sum.TotalWithVAT.Add(s.TotalWithVAT)
		sum.SessionsCount++
		if s.Approved {
			sum.ApprovedSessionsCount++
		}
		sum.ItemsCount += s.ActiveItems

		d := s.Discipline
		if d == "" {
			d = DisciplineOther
		}
		b, ok := buckets[d]
		if !ok {
			nb := emptyBucket(d)
			b = &nb
			buckets[d] = b
		}
		b.Quantity = b.Quantity.Add(s.TotalQuantity)
		b.Amount = b.Amount.Add(s.TotalAmount)
		b.SessionsCount++
	}

	sum.Civil = emptyBucket(DisciplineCivil)
	sum.Mechanical = emptyBucket(DisciplineMechanical)
	sum.Electrical = emptyBucket(DisciplineElectrical)
	for d, b := range buckets {
		switch d {
		case DisciplineCivil:
			sum.Civil = *b
		case DisciplineMechanical:
			sum.Mechanical = *b
		case DisciplineElectrical:
			sum.Electrical = *b
		}
		sum.Breakdown = append(sum.Breakdown, *b)
	}
	sort.Slice(sum.Breakdown, func(i, j int) bool {
		return disciplineRank(sum.Breakdown[i].Discipline) < disciplineRank(sum.Breakdown[j].Discipline) ||
			(disciplineRank(sum.Breakdown[i].Discipline) == disciplineRank(sum.Breakdown[j].Discipline) &&
				sum.Breakdown[i].Discipline < sum.Breakdown[j].Discipline)
	})

	if contractAmount.IsPositive() {
		sum.ProgressPercentage = sum.TotalAmount.Mul(hundred).Div(contractAmount)
		sum.OverBilled = sum.ProgressPercentage.GreaterThan(hundred)
	}
	return sum
}

func disciplineRank(d Discipline) int {
	for i, known := range Disciplines {
		if known == d {
			return i
		}
	}
	return len(Disciplines)
}

// DisplayProgress clamps the progress percentage to [0, 100] for display.
// The stored value stays unclamped.
func (s ProjectSummary) DisplayProgress() decimal.Decimal {
	p := s.ProgressPercentage
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
