package measurements

import (
	"context"
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"projectmeasure/collections"
	"projectmeasure/services"
)

// fillProjectSummary rolls the stored session statuses of the summary's
// project up into its derived fields.
func (s *Service) fillProjectSummary(app core.App, record *core.Record) error {
	projectID := record.GetString("project")
	project, err := findRecord(app, collections.Projects, projectID)
	if err != nil {
		return err
	}
	sessions, err := findActiveSessions(app, projectID)
	if err != nil {
		return err
	}

	inputs := make([]services.SessionRollupInput, 0, len(sessions))
	uniqueEntries := make(map[string]struct{})
	for _, session := range sessions {
		in := services.SessionRollupInput{
			SessionID:     session.Id,
			Discipline:    services.Discipline(session.GetString("discipline")),
			TotalQuantity: decimal.Zero,
			TotalAmount:   decimal.Zero,
			TotalWithVAT:  decimal.Zero,
			ActiveItems:   session.GetInt("items_count"),
		}
		status, err := findStatus(app, session.Id)
		if err != nil {
			return err
		}
		if status != nil {
			in.TotalQuantity = getDecimal(status, "total_quantity")
			in.TotalAmount = getDecimal(status, "total_amount")
			in.TotalWithVAT = getDecimal(status, "total_with_vat")
			in.Approved = status.GetBool("is_approved")
		}
		inputs = append(inputs, in)

		items, err := findActiveItems(app, session.Id)
		if err != nil {
			return err
		}
		for _, item := range items {
			uniqueEntries[item.GetString("price_list_entry")] = struct{}{}
		}
	}

	sum := services.ComputeProjectSummary(inputs, len(uniqueEntries), getDecimal(project, "contract_amount"))

	setDecimal(record, "total_quantity", sum.TotalQuantity)
	setDecimal(record, "total_amount", sum.TotalAmount)
	setDecimal(record, "total_with_vat", sum.TotalWithVAT)
	setDecimal(record, "civil_quantity", sum.Civil.Quantity)
	setDecimal(record, "civil_amount", sum.Civil.Amount)
	setDecimal(record, "mechanical_quantity", sum.Mechanical.Quantity)
	setDecimal(record, "mechanical_amount", sum.Mechanical.Amount)
	setDecimal(record, "electrical_quantity", sum.Electrical.Quantity)
	setDecimal(record, "electrical_amount", sum.Electrical.Amount)
	setDecimal(record, "progress_percentage", sum.ProgressPercentage)
	record.Set("discipline_breakdown", breakdownJSON(sum.Breakdown))
	record.Set("over_billed", sum.OverBilled)
	record.Set("sessions_count", sum.SessionsCount)
	record.Set("approved_sessions_count", sum.ApprovedSessionsCount)
	record.Set("items_count", sum.ItemsCount)
	record.Set("unique_items_count", sum.UniqueItemsCount)
	record.Set("last_calculated", types.NowDateTime())

	if sum.OverBilled {
		s.log.WithFields(logrus.Fields{
			"project":  projectID,
			"progress": sum.ProgressPercentage.StringFixed(2),
			"contract": project.GetString("contract_amount"),
		}).Warn("project measured amount exceeds contract amount")
	}
	return nil
}

// recomputeProjectSummary saves the project's summary row, creating it when
// missing. The save hook fills the derived fields.
func (s *Service) recomputeProjectSummary(app core.App, projectID string) (*core.Record, error) {
	if _, err := findRecord(app, collections.Projects, projectID); err != nil {
		return nil, err
	}
	record, err := findSummary(app, projectID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		col, err := app.FindCollectionByNameOrId(collections.ProjectFinancialSummaries)
		if err != nil {
			return nil, fmt.Errorf("find summaries collection: %w", err)
		}
		record = core.NewRecord(col)
		record.Set("project", projectID)
	}
	if err := app.Save(record); err != nil {
		return nil, fmt.Errorf("save summary of project %s: %w", projectID, err)
	}
	return record, nil
}

// BreakdownRow is one discipline bucket of a project summary.
type BreakdownRow struct {
	Discipline    string `json:"discipline"`
	Label         string `json:"label"`
	Quantity      string `json:"quantity"`
	Amount        string `json:"amount"`
	SessionsCount int    `json:"sessions_count"`
}

func breakdownJSON(buckets []services.DisciplineTotals) []BreakdownRow {
	rows := make([]BreakdownRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, BreakdownRow{
			Discipline:    string(b.Discipline),
			Label:         b.Discipline.Label(),
			Quantity:      b.Quantity.String(),
			Amount:        b.Amount.String(),
			SessionsCount: b.SessionsCount,
		})
	}
	return rows
}

func findSummary(app core.App, projectID string) (*core.Record, error) {
	rows, err := app.FindRecordsByFilter(
		collections.ProjectFinancialSummaries,
		"project = {:projectId}",
		"",
		1, 0,
		map[string]any{"projectId": projectID},
	)
	if err != nil {
		return nil, fmt.Errorf("find summary of project %s: %w", projectID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// RecomputeProjectSummary rebuilds and stores the project summary under the
// project lock.
func (s *Service) RecomputeProjectSummary(ctx context.Context, projectID string) (*core.Record, error) {
	release, err := lockAll(ctx, s.locker, projectLockKey(projectID))
	if err != nil {
		return nil, err
	}
	defer release()

	var summary *core.Record
	err = s.app.RunInTransaction(func(txApp core.App) error {
		var err error
		summary, err = s.recomputeProjectSummary(txApp, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ProjectSummaryView is the stored project summary in decimal form.
type ProjectSummaryView struct {
	ProjectID             string          `json:"project"`
	TotalQuantity         decimal.Decimal `json:"total_quantity"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	TotalWithVAT          decimal.Decimal `json:"total_with_vat"`
	CivilAmount           decimal.Decimal `json:"civil_amount"`
	MechanicalAmount      decimal.Decimal `json:"mechanical_amount"`
	ElectricalAmount      decimal.Decimal `json:"electrical_amount"`
	Breakdown             []BreakdownRow  `json:"discipline_breakdown"`
	ProgressPercentage    decimal.Decimal `json:"progress_percentage"`
	DisplayProgress       decimal.Decimal `json:"display_progress"`
	OverBilled            bool            `json:"over_billed"`
	SessionsCount         int             `json:"sessions_count"`
	ApprovedSessionsCount int             `json:"approved_sessions_count"`
	ItemsCount            int             `json:"items_count"`
	UniqueItemsCount      int             `json:"unique_items_count"`
	LastCalculated        string          `json:"last_calculated"`
}

// GetProjectSummary refreshes the project summary and returns it.
func (s *Service) GetProjectSummary(ctx context.Context, projectID string) (ProjectSummaryView, error) {
	record, err := s.RecomputeProjectSummary(ctx, projectID)
	if err != nil {
		return ProjectSummaryView{}, err
	}

	var breakdown []BreakdownRow
	if err := record.UnmarshalJSONField("discipline_breakdown", &breakdown); err != nil {
		s.log.WithError(err).Warn("unreadable discipline breakdown")
	}
	progress := getDecimal(record, "progress_percentage")
	return ProjectSummaryView{
		ProjectID:             projectID,
		TotalQuantity:         getDecimal(record, "total_quantity"),
		TotalAmount:           getDecimal(record, "total_amount"),
		TotalWithVAT:          getDecimal(record, "total_with_vat"),
		CivilAmount:           getDecimal(record, "civil_amount"),
		MechanicalAmount:      getDecimal(record, "mechanical_amount"),
		ElectricalAmount:      getDecimal(record, "electrical_amount"),
		Breakdown:             breakdown,
		ProgressPercentage:    progress,
		DisplayProgress:       services.ProjectSummary{ProgressPercentage: progress}.DisplayProgress(),
		OverBilled:            record.GetBool("over_billed"),
		SessionsCount:         record.GetInt("sessions_count"),
		ApprovedSessionsCount: record.GetInt("approved_sessions_count"),
		ItemsCount:            record.GetInt("items_count"),
		UniqueItemsCount:      record.GetInt("unique_items_count"),
		LastCalculated:        record.GetString("last_calculated"),
	}, nil
}
