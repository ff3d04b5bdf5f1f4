package measurements

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"projectmeasure/collections"
)

var minCount = decimal.RequireFromString("0.01")

// ItemInput is a new line item. Dimensions left null count as zero in the
// quantity formula; Count defaults to 1. UnitPrice is copied from the entry
// when omitted.
type ItemInput struct {
	PriceListEntryID string              `json:"price_list_entry"`
	RowDescription   string              `json:"row_description"`
	Length           decimal.NullDecimal `json:"length"`
	Width            decimal.NullDecimal `json:"width"`
	Height           decimal.NullDecimal `json:"height"`
	Weight           decimal.NullDecimal `json:"weight"`
	Count            decimal.NullDecimal `json:"count"`
	UnitPrice        decimal.NullDecimal `json:"unit_price"`
}

func (in ItemInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.PriceListEntryID, validation.Required),
		validation.Field(&in.RowDescription, validation.Length(0, 500)),
		validation.Field(&in.Length, validation.By(nonNegative)),
		validation.Field(&in.Width, validation.By(nonNegative)),
		validation.Field(&in.Height, validation.By(nonNegative)),
		validation.Field(&in.Weight, validation.By(nonNegative)),
		validation.Field(&in.Count, validation.By(atLeastMinCount)),
		validation.Field(&in.UnitPrice, validation.By(nonNegative)),
	)
}

// OptionalDecimal is a patch value that tells an omitted field apart from an
// explicit null. Set is true whenever the field was present in the request.
type OptionalDecimal struct {
	Set   bool
	Value decimal.NullDecimal
}

// SetDecimal returns a present value.
func SetDecimal(d decimal.Decimal) OptionalDecimal {
	return OptionalDecimal{Set: true, Value: decimal.NewNullDecimal(d)}
}

// ClearDecimal returns a present null, which clears the field.
func ClearDecimal() OptionalDecimal {
	return OptionalDecimal{Set: true}
}

func (o *OptionalDecimal) UnmarshalJSON(b []byte) error {
	o.Set = true
	return o.Value.UnmarshalJSON(b)
}

func (o OptionalDecimal) MarshalJSON() ([]byte, error) {
	return o.Value.MarshalJSON()
}

// ItemPatch edits an existing line item. Omitted fields keep their value and
// a null clears it. A cleared count falls back to 1 and a cleared unit price
// is taken from the entry again. Reason is stored on the revision written
// for dimensional changes.
type ItemPatch struct {
	RowDescription *string         `json:"row_description"`
	Length         OptionalDecimal `json:"length"`
	Width          OptionalDecimal `json:"width"`
	Height         OptionalDecimal `json:"height"`
	Weight         OptionalDecimal `json:"weight"`
	Count          OptionalDecimal `json:"count"`
	UnitPrice      OptionalDecimal `json:"unit_price"`
	Reason         string          `json:"reason"`
}

func (p ItemPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RowDescription, validation.Length(0, 500)),
		validation.Field(&p.Length, validation.By(nonNegative)),
		validation.Field(&p.Width, validation.By(nonNegative)),
		validation.Field(&p.Height, validation.By(nonNegative)),
		validation.Field(&p.Weight, validation.By(nonNegative)),
		validation.Field(&p.Count, validation.By(atLeastMinCount)),
		validation.Field(&p.UnitPrice, validation.By(nonNegative)),
		validation.Field(&p.Reason, validation.Length(0, 1000)),
	)
}

func asNullDecimal(value any) (decimal.NullDecimal, bool) {
	switch v := value.(type) {
	case decimal.NullDecimal:
		return v, v.Valid
	case OptionalDecimal:
		return v.Value, v.Set && v.Value.Valid
	}
	return decimal.NullDecimal{}, false
}

func nonNegative(value any) error {
	d, ok := asNullDecimal(value)
	if ok && d.Decimal.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func atLeastMinCount(value any) error {
	d, ok := asNullDecimal(value)
	if ok && d.Decimal.LessThan(minCount) {
		return errors.New("must be at least 0.01")
	}
	return nil
}

// editable reports whether the session still accepts item changes.
func editable(session *core.Record) error {
	switch session.GetString("status") {
	case collections.SessionSubmitted, collections.SessionApproved:
		return fmt.Errorf("session %s is %s: %w", session.Id, session.GetString("status"), ErrSessionClosed)
	}
	return nil
}

// afterItemChange keeps items_count, the session status and the project
// summary in step with an item mutation. It runs inside the mutation's
// transaction.
func (s *Service) afterItemChange(txApp core.App, session *core.Record) error {
	if err := syncItemsCount(txApp, session); err != nil {
		return err
	}
	if _, err := s.recomputeSessionStatus(txApp, session.Id); err != nil {
		return err
	}
	_, err := s.recomputeProjectSummary(txApp, session.GetString("project"))
	return err
}

// CreateItem adds an active line item to a session.
func (s *Service) CreateItem(ctx context.Context, sessionID string, in ItemInput, actor Actor) (*core.Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in.RowDescription = strings.TrimSpace(in.RowDescription)

	var item *core.Record
	err := s.withSessionLocks(ctx, sessionID, func(txApp core.App, session *core.Record) error {
		if err := editable(session); err != nil {
			return err
		}
		entry, err := findActiveRecord(txApp, collections.PriceListEntries, in.PriceListEntryID)
		if err != nil {
			return err
		}
		if entry.GetString("price_list") != session.GetString("price_list") {
			return validation.Errors{"price_list_entry": errors.New("entry does not belong to the session's price list")}
		}

		dup, err := hasDuplicateItem(txApp, session.Id, entry.Id, in.RowDescription, "")
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateLineItem
		}

		col, err := txApp.FindCollectionByNameOrId(collections.MeasurementItems)
		if err != nil {
			return fmt.Errorf("find items collection: %w", err)
		}
		item = core.NewRecord(col)
		item.Set("session", session.Id)
		item.Set("price_list_entry", entry.Id)
		item.Set("row_description", in.RowDescription)
		setNullDecimal(item, "length", in.Length)
		setNullDecimal(item, "width", in.Width)
		setNullDecimal(item, "height", in.Height)
		setNullDecimal(item, "weight", in.Weight)
		count := in.Count
		if !count.Valid {
			count = decimal.NewNullDecimal(decimal.NewFromInt(1))
		}
		setNullDecimal(item, "count", count)
		setNullDecimal(item, "unit_price", in.UnitPrice)
		sortOrder, err := getNextSortOrder(txApp, session.Id)
		if err != nil {
			return err
		}
		item.Set("sort_order", sortOrder)
		item.Set("is_active", true)
		item.Set("created_by", actor.ID)
		applyFigures(item, entry)

		if err := txApp.Save(item); err != nil {
			return fmt.Errorf("save item: %w", err)
		}
		return s.afterItemChange(txApp, session)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]any{
		"session": sessionID,
		"item":    item.Id,
		"total":   item.GetString("item_total"),
	}).Debug("item created")
	return item, nil
}

// UpdateItem applies patch to an active item. A change to any dimension
// first records a revision with the pre-edit values.
func (s *Service) UpdateItem(ctx context.Context, sessionID, itemID string, patch ItemPatch, actor Actor) (*core.Record, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var item *core.Record
	err := s.withSessionLocks(ctx, sessionID, func(txApp core.App, session *core.Record) error {
		if err := editable(session); err != nil {
			return err
		}
		var err error
		item, err = findSessionItem(txApp, session.Id, itemID)
		if err != nil {
			return err
		}
		entry, err := findRecord(txApp, collections.PriceListEntries, item.GetString("price_list_entry"))
		if err != nil {
			return err
		}

		if patch.RowDescription != nil {
			desc := strings.TrimSpace(*patch.RowDescription)
			if desc != item.GetString("row_description") {
				dup, err := hasDuplicateItem(txApp, session.Id, entry.Id, desc, item.Id)
				if err != nil {
					return err
				}
				if dup {
					return ErrDuplicateLineItem
				}
				item.Set("row_description", desc)
			}
		}

		if dimensionsChanged(item, patch) {
			if _, err := s.recordRevision(txApp, item, actor, patch.Reason); err != nil {
				return err
			}
			applyDimensions(item, patch)
		}
		if patch.UnitPrice.Set {
			setNullDecimal(item, "unit_price", patch.UnitPrice.Value)
		}
		applyFigures(item, entry)

		if err := txApp.Save(item); err != nil {
			return fmt.Errorf("save item: %w", err)
		}
		return s.afterItemChange(txApp, session)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem deactivates an item. Inactive items drop out of every total
// but keep their revisions.
func (s *Service) DeleteItem(ctx context.Context, sessionID, itemID string, actor Actor) error {
	err := s.withSessionLocks(ctx, sessionID, func(txApp core.App, session *core.Record) error {
		if err := editable(session); err != nil {
			return err
		}
		item, err := findSessionItem(txApp, session.Id, itemID)
		if err != nil {
			return err
		}
		item.Set("is_active", false)
		if err := txApp.Save(item); err != nil {
			return fmt.Errorf("deactivate item: %w", err)
		}
		return s.afterItemChange(txApp, session)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(map[string]any{
		"session": sessionID,
		"item":    itemID,
		"actor":   actor.ID,
	}).Info("item deactivated")
	return nil
}

func findSessionItem(app core.App, sessionID, itemID string) (*core.Record, error) {
	item, err := findActiveRecord(app, collections.MeasurementItems, itemID)
	if err != nil {
		return nil, err
	}
	if item.GetString("session") != sessionID {
		return nil, fmt.Errorf("item %s is not in session %s: %w", itemID, sessionID, ErrNotFound)
	}
	return item, nil
}

var dimensionFields = []string{"length", "width", "height", "weight", "count"}

func patchDimensions(p ItemPatch) []OptionalDecimal {
	return []OptionalDecimal{p.Length, p.Width, p.Height, p.Weight, p.Count}
}

func dimensionsChanged(item *core.Record, p ItemPatch) bool {
	for i, v := range patchDimensions(p) {
		if !v.Set {
			continue
		}
		current := getNullDecimal(item, dimensionFields[i])
		next := v.Value
		if dimensionFields[i] == "count" && !next.Valid {
			next = decimal.NewNullDecimal(decimal.NewFromInt(1))
		}
		if current.Valid != next.Valid || (next.Valid && !current.Decimal.Equal(next.Decimal)) {
			return true
		}
	}
	return false
}

func applyDimensions(item *core.Record, p ItemPatch) {
	for i, v := range patchDimensions(p) {
		if !v.Set {
			continue
		}
		value := v.Value
		if dimensionFields[i] == "count" && !value.Valid {
			value = decimal.NewNullDecimal(decimal.NewFromInt(1))
		}
		setNullDecimal(item, dimensionFields[i], value)
	}
}
