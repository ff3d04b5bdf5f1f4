package measurements

import (
	"context"
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"projectmeasure/collections"
	"projectmeasure/services"
)

// fillSessionStatus recomputes the derived fields of a status row from the
// session's active items. vat_rate and the approval fields are inputs and
// are kept; an empty vat_rate takes the default.
func (s *Service) fillSessionStatus(app core.App, status *core.Record) error {
	items, err := findActiveItems(app, status.GetString("session"))
	if err != nil {
		return err
	}
	figures := make([]services.ItemFigures, 0, len(items))
	for _, item := range items {
		figures = append(figures, figuresFromRecord(item))
	}

	vatRate := s.defaultVAT
	if rate := getNullDecimal(status, "vat_rate"); rate.Valid {
		vatRate = rate.Decimal
	}

	st := services.ComputeSessionStatus(figures, vatRate)
	setDecimal(status, "total_quantity", st.TotalQuantity)
	setDecimal(status, "total_amount", st.TotalAmount)
	status.Set("active_items_count", st.ActiveItemsCount)
	status.Set("unique_pricelist_items_count", st.UniquePriceListItemsCount)
	status.Set("row_descriptions_count", st.RowDescriptionsCount)
	status.Set("vat_rate", st.VATRate.StringFixed(2))
	setDecimal(status, "total_with_vat", st.TotalWithVAT)
	return nil
}

// sessionStatusRecord returns the status row of a session, or a new unsaved
// one when the session has none.
func sessionStatusRecord(app core.App, sessionID string) (*core.Record, error) {
	status, err := findStatus(app, sessionID)
	if err != nil || status != nil {
		return status, err
	}
	col, err := app.FindCollectionByNameOrId(collections.SessionFinancialStatus)
	if err != nil {
		return nil, fmt.Errorf("find status collection: %w", err)
	}
	status = core.NewRecord(col)
	status.Set("session", sessionID)
	return status, nil
}

// recomputeSessionStatus saves the session's status row. The save hook
// fills the derived fields.
func (s *Service) recomputeSessionStatus(app core.App, sessionID string) (*core.Record, error) {
	status, err := sessionStatusRecord(app, sessionID)
	if err != nil {
		return nil, err
	}
	if err := app.Save(status); err != nil {
		return nil, fmt.Errorf("save status of session %s: %w", sessionID, err)
	}
	return status, nil
}

// RecomputeSessionStatus rebuilds and stores the status of one session and
// the summary of its project.
func (s *Service) RecomputeSessionStatus(ctx context.Context, sessionID string) (*core.Record, error) {
	var status *core.Record
	err := s.withSessionLocks(ctx, sessionID, func(txApp core.App, session *core.Record) error {
		var err error
		if status, err = s.recomputeSessionStatus(txApp, session.Id); err != nil {
			return err
		}
		_, err = s.recomputeProjectSummary(txApp, session.GetString("project"))
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// SessionStatusView is the stored status of a session in decimal form.
type SessionStatusView struct {
	SessionID                 string          `json:"session"`
	TotalQuantity             decimal.Decimal `json:"total_quantity"`
	TotalAmount               decimal.Decimal `json:"total_amount"`
	ActiveItemsCount          int             `json:"active_items_count"`
	UniquePriceListItemsCount int             `json:"unique_pricelist_items_count"`
	RowDescriptionsCount      int             `json:"row_descriptions_count"`
	VATRate                   decimal.Decimal `json:"vat_rate"`
	VATAmount                 decimal.Decimal `json:"vat_amount"`
	TotalWithVAT              decimal.Decimal `json:"total_with_vat"`
	IsApproved                bool            `json:"is_approved"`
	ApprovedBy                string          `json:"approved_by,omitempty"`
	ApprovalDate              string          `json:"approval_date,omitempty"`
}

func statusView(r *core.Record) SessionStatusView {
	amount := getDecimal(r, "total_amount")
	rate := getDecimal(r, "vat_rate")
	return SessionStatusView{
		SessionID:                 r.GetString("session"),
		TotalQuantity:             getDecimal(r, "total_quantity"),
		TotalAmount:               amount,
		ActiveItemsCount:          r.GetInt("active_items_count"),
		UniquePriceListItemsCount: r.GetInt("unique_pricelist_items_count"),
		RowDescriptionsCount:      r.GetInt("row_descriptions_count"),
		VATRate:                   rate,
		VATAmount:                 services.VATAmount(amount, rate),
		TotalWithVAT:              getDecimal(r, "total_with_vat"),
		IsApproved:                r.GetBool("is_approved"),
		ApprovedBy:                r.GetString("approved_by"),
		ApprovalDate:              r.GetString("approval_date"),
	}
}

// GetSessionStatus returns the stored status, computing it first when the
// session has none yet.
func (s *Service) GetSessionStatus(ctx context.Context, sessionID string) (SessionStatusView, error) {
	session, err := findActiveRecord(s.app, collections.MeasurementSessions, sessionID)
	if err != nil {
		return SessionStatusView{}, err
	}
	status, err := findStatus(s.app, session.Id)
	if err != nil {
		return SessionStatusView{}, err
	}
	if status == nil {
		if status, err = s.RecomputeSessionStatus(ctx, session.Id); err != nil {
			return SessionStatusView{}, err
		}
	}
	return statusView(status), nil
}

// GroupSessionItems returns the session's active items grouped by price-list
// row and row description. Nothing is stored.
func (s *Service) GroupSessionItems(sessionID string) ([]services.PriceListGroup, error) {
	if _, err := findActiveRecord(s.app, collections.MeasurementSessions, sessionID); err != nil {
		return nil, err
	}
	items, err := findActiveItems(s.app, sessionID)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]services.PriceEntry)
	groupable := make([]services.GroupableItem, 0, len(items))
	for _, item := range items {
		entryID := item.GetString("price_list_entry")
		entry, ok := entries[entryID]
		if !ok {
			record, err := findRecord(s.app, collections.PriceListEntries, entryID)
			if err != nil {
				return nil, err
			}
			entry = entryFromRecord(record)
			entries[entryID] = entry
		}
		groupable = append(groupable, services.GroupableItem{
			ItemFigures: figuresFromRecord(item),
			Entry:       entry,
			SortOrder:   item.GetInt("sort_order"),
		})
	}
	return services.GroupItemsByPriceList(groupable), nil
}
