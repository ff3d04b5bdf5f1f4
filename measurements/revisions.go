package measurements

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"projectmeasure/collections"
)

// recordRevision appends the item's current dimensional state to its
// history. It must run before the edit is applied.
func (s *Service) recordRevision(app core.App, item *core.Record, actor Actor, reason string) (*core.Record, error) {
	if strings.TrimSpace(actor.Role) == "" {
		return nil, ErrMissingRole
	}

	col, err := app.FindCollectionByNameOrId(collections.ItemRevisions)
	if err != nil {
		return nil, fmt.Errorf("find revisions collection: %w", err)
	}

	rev := core.NewRecord(col)
	rev.Set("item", item.Id)
	rev.Set("editor_id", actor.ID)
	rev.Set("editor_role", actor.Role)
	// Stored exactly as they were on the item.
	rev.Set("old_length", item.GetString("length"))
	rev.Set("old_width", item.GetString("width"))
	rev.Set("old_height", item.GetString("height"))
	rev.Set("old_weight", item.GetString("weight"))
	rev.Set("old_count", item.GetString("count"))
	rev.Set("old_quantity", item.GetString("quantity"))
	rev.Set("reason", reason)

	if err := app.Save(rev); err != nil {
		return nil, fmt.Errorf("save revision of item %s: %w", item.Id, err)
	}
	return rev, nil
}

// RecordRevision records the current state of an item on behalf of actor.
// Callers normally go through UpdateItem, which does this automatically.
func (s *Service) RecordRevision(ctx context.Context, itemID string, actor Actor, reason string) (*core.Record, error) {
	if strings.TrimSpace(actor.Role) == "" {
		return nil, ErrMissingRole
	}
	item, err := findRecord(s.app, collections.MeasurementItems, itemID)
	if err != nil {
		return nil, err
	}

	var rev *core.Record
	err = s.withSessionLocks(ctx, item.GetString("session"), func(txApp core.App, _ *core.Record) error {
		current, err := findRecord(txApp, collections.MeasurementItems, itemID)
		if err != nil {
			return err
		}
		rev, err = s.recordRevision(txApp, current, actor, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// Revision is one entry of an item's history.
type Revision struct {
	ID          string              `json:"id"`
	ItemID      string              `json:"item"`
	EditorID    string              `json:"editor_id"`
	EditorRole  string              `json:"editor_role"`
	OldLength   decimal.NullDecimal `json:"old_length"`
	OldWidth    decimal.NullDecimal `json:"old_width"`
	OldHeight   decimal.NullDecimal `json:"old_height"`
	OldWeight   decimal.NullDecimal `json:"old_weight"`
	OldCount    decimal.NullDecimal `json:"old_count"`
	OldQuantity decimal.NullDecimal `json:"old_quantity"`
	Reason      string              `json:"reason"`
	Created     string              `json:"created"`
}

// ListRevisions returns the item's revisions, newest first.
func (s *Service) ListRevisions(itemID string) ([]Revision, error) {
	if _, err := findRecord(s.app, collections.MeasurementItems, itemID); err != nil {
		return nil, err
	}
	records, err := s.app.FindRecordsByFilter(
		collections.ItemRevisions,
		"item = {:itemId}",
		"-created",
		0, 0,
		map[string]any{"itemId": itemID},
	)
	if err != nil {
		return nil, fmt.Errorf("find revisions of item %s: %w", itemID, err)
	}

	revisions := make([]Revision, 0, len(records))
	for _, r := range records {
		revisions = append(revisions, Revision{
			ID:          r.Id,
			ItemID:      r.GetString("item"),
			EditorID:    r.GetString("editor_id"),
			EditorRole:  r.GetString("editor_role"),
			OldLength:   getNullDecimal(r, "old_length"),
			OldWidth:    getNullDecimal(r, "old_width"),
			OldHeight:   getNullDecimal(r, "old_height"),
			OldWeight:   getNullDecimal(r, "old_weight"),
			OldCount:    getNullDecimal(r, "old_count"),
			OldQuantity: getNullDecimal(r, "old_quantity"),
			Reason:      r.GetString("reason"),
			Created:     r.GetString("created"),
		})
	}
	return revisions, nil
}
