package measurements

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"projectmeasure/collections"
	"projectmeasure/services"
)

// Record helpers shared by every operation. Decimal columns are text holding
// a canonical decimal string.

func getDecimal(r *core.Record, field string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(r.GetString(field)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func getNullDecimal(r *core.Record, field string) decimal.NullDecimal {
	s := strings.TrimSpace(r.GetString(field))
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func setDecimal(r *core.Record, field string, d decimal.Decimal) {
	r.Set(field, d.String())
}

func setNullDecimal(r *core.Record, field string, d decimal.NullDecimal) {
	if !d.Valid {
		r.Set(field, "")
		return
	}
	setDecimal(r, field, d.Decimal)
}

// findRecord maps a missing row to ErrNotFound.
func findRecord(app core.App, collection, id string) (*core.Record, error) {
	r, err := app.FindRecordById(collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %q: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("find %s %q: %w", collection, id, err)
	}
	return r, nil
}

func findActiveRecord(app core.App, collection, id string) (*core.Record, error) {
	r, err := findRecord(app, collection, id)
	if err != nil {
		return nil, err
	}
	if !r.GetBool("is_active") {
		return nil, fmt.Errorf("%s %q is inactive: %w", collection, id, ErrNotFound)
	}
	return r, nil
}

const activeItemsFilter = "session = {:sessionId} && is_active = true"

func findActiveItems(app core.App, sessionID string) ([]*core.Record, error) {
	items, err := app.FindRecordsByFilter(
		collections.MeasurementItems,
		activeItemsFilter,
		"sort_order,created",
		0, 0,
		map[string]any{"sessionId": sessionID},
	)
	if err != nil {
		return nil, fmt.Errorf("find active items of session %s: %w", sessionID, err)
	}
	return items, nil
}

func findActiveSessions(app core.App, projectID string) ([]*core.Record, error) {
	sessions, err := app.FindRecordsByFilter(
		collections.MeasurementSessions,
		"project = {:projectId} && is_active = true",
		"created",
		0, 0,
		map[string]any{"projectId": projectID},
	)
	if err != nil {
		return nil, fmt.Errorf("find sessions of project %s: %w", projectID, err)
	}
	return sessions, nil
}

// findStatus returns the status row of a session, or nil when none exists.
func findStatus(app core.App, sessionID string) (*core.Record, error) {
	rows, err := app.FindRecordsByFilter(
		collections.SessionFinancialStatus,
		"session = {:sessionId}",
		"",
		1, 0,
		map[string]any{"sessionId": sessionID},
	)
	if err != nil {
		return nil, fmt.Errorf("find status of session %s: %w", sessionID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// hasDuplicateItem reports whether another active item of the session uses
// the same entry and row description. excludeID skips the item being edited.
func hasDuplicateItem(app core.App, sessionID, entryID, rowDescription, excludeID string) (bool, error) {
	filter := activeItemsFilter + " && price_list_entry = {:entryId} && row_description = {:desc}"
	params := map[string]any{
		"sessionId": sessionID,
		"entryId":   entryID,
		"desc":      rowDescription,
	}
	if excludeID != "" {
		filter += " && id != {:excludeId}"
		params["excludeId"] = excludeID
	}
	existing, err := app.FindRecordsByFilter(collections.MeasurementItems, filter, "", 1, 0, params)
	if err != nil {
		return false, fmt.Errorf("check duplicate item: %w", err)
	}
	return len(existing) > 0, nil
}

// getNextSortOrder returns the next sort_order for a session's items.
func getNextSortOrder(app core.App, sessionID string) (int, error) {
	records, err := app.FindRecordsByFilter(
		collections.MeasurementItems,
		"session = {:sessionId}",
		"-sort_order",
		1, 0,
		map[string]any{"sessionId": sessionID},
	)
	if err != nil {
		return 0, fmt.Errorf("find last item of session %s: %w", sessionID, err)
	}
	if len(records) == 0 {
		return 1, nil
	}
	return records[0].GetInt("sort_order") + 1, nil
}

func entryFromRecord(r *core.Record) services.PriceEntry {
	return services.PriceEntry{
		ID:          r.Id,
		RowNumber:   r.GetString("row_number"),
		Description: r.GetString("description"),
		Unit:        r.GetString("unit"),
		UnitPrice:   getDecimal(r, "unit_price"),
	}
}

func dimensionsFromRecord(r *core.Record) services.Dimensions {
	count := getNullDecimal(r, "count")
	d := services.Dimensions{
		Length: getNullDecimal(r, "length"),
		Width:  getNullDecimal(r, "width"),
		Height: getNullDecimal(r, "height"),
		Weight: getNullDecimal(r, "weight"),
		Count:  decimal.NewFromInt(1),
	}
	if count.Valid {
		d.Count = count.Decimal
	}
	return d
}

func figuresFromRecord(r *core.Record) services.ItemFigures {
	return services.ItemFigures{
		ItemID:         r.Id,
		EntryID:        r.GetString("price_list_entry"),
		RowDescription: r.GetString("row_description"),
		Quantity:       getDecimal(r, "quantity"),
		UnitPrice:      getDecimal(r, "unit_price"),
		Total:          getDecimal(r, "item_total"),
	}
}

// applyFigures recomputes quantity and item_total on an item. unit_price is
// filled from the entry while the item has none or a zero one.
func applyFigures(item *core.Record, entry *core.Record) services.ItemFigures {
	pe := entryFromRecord(entry)
	f := services.PriceItem(&pe, dimensionsFromRecord(item), getNullDecimal(item, "unit_price"))
	setDecimal(item, "quantity", f.Quantity)
	setDecimal(item, "unit_price", f.UnitPrice)
	setDecimal(item, "item_total", f.Total)
	f.ItemID = item.Id
	f.RowDescription = item.GetString("row_description")
	return f
}

// syncItemsCount stores the number of active items on the session.
func syncItemsCount(app core.App, session *core.Record) error {
	n, err := app.CountRecords(collections.MeasurementItems, dbx.HashExp{
		"session":   session.Id,
		"is_active": true,
	})
	if err != nil {
		return fmt.Errorf("count items of session %s: %w", session.Id, err)
	}
	session.Set("items_count", n)
	if err := app.Save(session); err != nil {
		return fmt.Errorf("save items_count of session %s: %w", session.Id, err)
	}
	return nil
}
