package measurements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"projectmeasure/collections"
	"projectmeasure/testhelpers"
)

func TestCreateItem_ComputesFigures(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)

	item, err := f.svc.CreateItem(context.Background(), session.Id, ItemInput{
		PriceListEntryID: f.areaEntry.Id,
		RowDescription:   "Level 2 corridor",
		Length:           nd(decimal.NewFromInt(3)),
		Width:            nd(decimal.NewFromInt(4)),
		Count:            nd(decimal.NewFromInt(2)),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	assertDecimal(t, "quantity", item.GetString("quantity"), "24")
	assertDecimal(t, "unit_price", item.GetString("unit_price"), "150.00")
	assertDecimal(t, "item_total", item.GetString("item_total"), "3600.00")
	if item.GetString("height") != "" {
		t.Errorf("height = %q, want empty", item.GetString("height"))
	}
	if item.GetInt("sort_order") != 1 {
		t.Errorf("sort_order = %d, want 1", item.GetInt("sort_order"))
	}
}

func TestCreateItem_MissingDimensionIsZero(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)

	item, err := f.svc.CreateItem(context.Background(), session.Id, ItemInput{
		PriceListEntryID: f.areaEntry.Id,
		Length:           nd(decimal.NewFromInt(3)),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	assertDecimal(t, "quantity", item.GetString("quantity"), "0")
	assertDecimal(t, "count", item.GetString("count"), "1")
}

func TestCreateItem_KeepsExplicitUnitPrice(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)

	item, err := f.svc.CreateItem(context.Background(), session.Id, ItemInput{
		PriceListEntryID: f.unitEntry.Id,
		Count:            nd(decimal.NewFromInt(4)),
		UnitPrice:        nd(decimal.RequireFromString("12.50")),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	assertDecimal(t, "item_total", item.GetString("item_total"), "50")
}

func TestCreateItem_UpdatesItemsCount(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)

	for _, desc := range []string{"a", "b", "c"} {
		f.pieces(t, session.Id, desc, 1)
	}
	if got := reload(t, f.app, collections.MeasurementSessions, session.Id).GetInt("items_count"); got != 3 {
		t.Fatalf("items_count = %d, want 3", got)
	}

	f.pieces(t, session.Id, "d", 1)
	if got := reload(t, f.app, collections.MeasurementSessions, session.Id).GetInt("items_count"); got != 4 {
		t.Errorf("items_count = %d, want 4", got)
	}
}

func TestCreateItem_RejectsDuplicate(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	first := f.pieces(t, session.Id, "Axis 3", 1)

	_, err := f.svc.CreateItem(context.Background(), session.Id, ItemInput{
		PriceListEntryID: f.unitEntry.Id,
		RowDescription:   "Axis 3",
	}, supervisor)
	if !errors.Is(err, ErrDuplicateLineItem) {
		t.Fatalf("error = %v, want ErrDuplicateLineItem", err)
	}

	// Same entry under another description is a separate row.
	f.pieces(t, session.Id, "Axis 4", 1)

	// A deactivated item frees its key.
	if err := f.svc.DeleteItem(context.Background(), session.Id, first.Id, supervisor); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	f.pieces(t, session.Id, "Axis 3", 2)

	if got := reload(t, f.app, collections.MeasurementSessions, session.Id).GetInt("items_count"); got != 2 {
		t.Errorf("items_count = %d, want 2", got)
	}
}

func TestCreateItem_Validation(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)

	tests := []struct {
		name  string
		input ItemInput
		field string
	}{
		{"missing entry", ItemInput{}, "price_list_entry"},
		{"negative length", ItemInput{PriceListEntryID: f.areaEntry.Id, Length: nd(decimal.NewFromInt(-1))}, "length"},
		{"count below minimum", ItemInput{PriceListEntryID: f.areaEntry.Id, Count: nd(decimal.RequireFromString("0.001"))}, "count"},
		{"negative price", ItemInput{PriceListEntryID: f.areaEntry.Id, UnitPrice: nd(decimal.NewFromInt(-5))}, "unit_price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateItem(context.Background(), session.Id, tt.input, supervisor)
			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				t.Fatalf("error = %v, want validation.Errors", err)
			}
			if _, ok := verrs[tt.field]; !ok {
				t.Errorf("expected error on %q, got %v", tt.field, verrs)
			}
		})
	}
}

func TestCreateItem_EntryFromOtherPriceList(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)

	mechList := testhelpers.CreateTestPriceList(t, f.app, "Mechanical 1403", "mechanical")
	mech := testhelpers.CreateTestEntry(t, f.app, mechList.Id, "020105", "Black steel pipe", "متر", "2150000")

	_, err := f.svc.CreateItem(context.Background(), session.Id, ItemInput{PriceListEntryID: mech.Id}, supervisor)
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("error = %v, want validation.Errors", err)
	}
}

func TestUpdateItem_RecordsRevision(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	ctx := context.Background()

	item, err := f.svc.CreateItem(ctx, session.Id, ItemInput{
		PriceListEntryID: f.areaEntry.Id,
		RowDescription:   "Wall W1",
		Length:           nd(decimal.NewFromInt(3)),
		Width:            nd(decimal.NewFromInt(2)),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	other, err := f.svc.CreateItem(ctx, session.Id, ItemInput{
		PriceListEntryID: f.areaEntry.Id,
		RowDescription:   "Wall W2",
		Length:           nd(decimal.NewFromInt(1)),
		Width:            nd(decimal.NewFromInt(1)),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	updated, err := f.svc.UpdateItem(ctx, session.Id, item.Id, ItemPatch{Length: ndp("5"), Reason: "site re-measure"}, supervisor)
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	assertDecimal(t, "quantity", updated.GetString("quantity"), "10")
	assertDecimal(t, "item_total", updated.GetString("item_total"), "1500")

	revs, err := f.svc.ListRevisions(item.Id)
	if err != nil {
		t.Fatalf("ListRevisions() error = %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("revisions = %d, want 1", len(revs))
	}
	rev := revs[0]
	if !rev.OldLength.Valid || !rev.OldLength.Decimal.Equal(decimal.NewFromInt(3)) {
		t.Errorf("old_length = %v, want 3", rev.OldLength)
	}
	if !rev.OldQuantity.Decimal.Equal(decimal.NewFromInt(6)) {
		t.Errorf("old_quantity = %v, want 6", rev.OldQuantity)
	}
	if rev.OldHeight.Valid {
		t.Errorf("old_height = %v, want null", rev.OldHeight)
	}
	if rev.EditorRole != "supervisor" || rev.Reason != "site re-measure" {
		t.Errorf("revision = %+v", rev)
	}

	otherRevs, _ := f.svc.ListRevisions(other.Id)
	if len(otherRevs) != 0 {
		t.Errorf("other item revisions = %d, want 0", len(otherRevs))
	}

	status, _ := f.svc.GetSessionStatus(ctx, session.Id)
	if !status.TotalAmount.Equal(decimal.NewFromInt(1650)) {
		t.Errorf("session total = %s, want 1650", status.TotalAmount)
	}
}

func TestUpdateItem_NoRevisionWithoutDimensionChange(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	item := f.pieces(t, session.Id, "Door D1", 2)

	desc := "Door D1 (north)"
	updated, err := f.svc.UpdateItem(context.Background(), session.Id, item.Id, ItemPatch{
		RowDescription: &desc,
		Count:          ndp("2.00"),
	}, noRole)
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.GetString("row_description") != desc {
		t.Errorf("row_description = %q", updated.GetString("row_description"))
	}
	revs, _ := f.svc.ListRevisions(item.Id)
	if len(revs) != 0 {
		t.Errorf("revisions = %d, want 0", len(revs))
	}
}

func TestUpdateItem_MissingRoleFails(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	item := f.pieces(t, session.Id, "Door D2", 2)

	_, err := f.svc.UpdateItem(context.Background(), session.Id, item.Id, ItemPatch{Count: ndp("3")}, noRole)
	if !errors.Is(err, ErrMissingRole) {
		t.Fatalf("error = %v, want ErrMissingRole", err)
	}

	stored := reload(t, f.app, collections.MeasurementItems, item.Id)
	assertDecimal(t, "count", stored.GetString("count"), "2")
}

func TestUpdateItem_DuplicateDescription(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	f.pieces(t, session.Id, "A", 1)
	b := f.pieces(t, session.Id, "B", 1)

	desc := "A"
	_, err := f.svc.UpdateItem(context.Background(), session.Id, b.Id, ItemPatch{RowDescription: &desc}, supervisor)
	if !errors.Is(err, ErrDuplicateLineItem) {
		t.Errorf("error = %v, want ErrDuplicateLineItem", err)
	}
}

func TestUpdateItem_WrongSession(t *testing.T) {
	f := newFixture(t, "0")
	s1 := f.session(t)
	s2 := f.session(t)
	item := f.pieces(t, s1.Id, "X", 1)

	_, err := f.svc.UpdateItem(context.Background(), s2.Id, item.Id, ItemPatch{Count: ndp("2")}, supervisor)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteItem_Deactivates(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	item := f.pieces(t, session.Id, "Gone", 5)

	if err := f.svc.DeleteItem(context.Background(), session.Id, item.Id, supervisor); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	stored := reload(t, f.app, collections.MeasurementItems, item.Id)
	if stored.GetBool("is_active") {
		t.Error("item should be inactive")
	}
	if got := reload(t, f.app, collections.MeasurementSessions, session.Id).GetInt("items_count"); got != 0 {
		t.Errorf("items_count = %d, want 0", got)
	}
	if err := f.svc.DeleteItem(context.Background(), session.Id, item.Id, supervisor); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestUpdateItem_ZeroPriceFollowsEntry(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	ctx := context.Background()
	provisional := testhelpers.CreateTestEntry(t, f.app, f.priceList.Id, "170101", "Provisional sum", "عدد", "0")

	item, err := f.svc.CreateItem(ctx, session.Id, ItemInput{
		PriceListEntryID: provisional.Id,
		Count:            nd(decimal.NewFromInt(2)),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	assertDecimal(t, "unit_price", item.GetString("unit_price"), "0")
	assertDecimal(t, "item_total", item.GetString("item_total"), "0")

	provisional.Set("unit_price", "100.00")
	if err := f.app.Save(provisional); err != nil {
		t.Fatalf("price entry: %v", err)
	}

	updated, err := f.svc.UpdateItem(ctx, session.Id, item.Id, ItemPatch{Count: ndp("3")}, supervisor)
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	assertDecimal(t, "unit_price", updated.GetString("unit_price"), "100")
	assertDecimal(t, "item_total", updated.GetString("item_total"), "300")
}

func TestUpdateItem_NullClearsField(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	ctx := context.Background()

	item, err := f.svc.CreateItem(ctx, session.Id, ItemInput{
		PriceListEntryID: f.unitEntry.Id,
		RowDescription:   "Door D9",
		Height:           nd(decimal.NewFromInt(2)),
		Count:            nd(decimal.NewFromInt(4)),
		UnitPrice:        nd(decimal.RequireFromString("12.50")),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	var patch ItemPatch
	if err := json.Unmarshal([]byte(`{"height":null,"unit_price":null}`), &patch); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	if !patch.Height.Set || patch.Height.Value.Valid || !patch.UnitPrice.Set || patch.Width.Set {
		t.Fatalf("decoded patch = %+v", patch)
	}

	updated, err := f.svc.UpdateItem(ctx, session.Id, item.Id, patch, supervisor)
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.GetString("height") != "" {
		t.Errorf("height = %q, want cleared", updated.GetString("height"))
	}
	assertDecimal(t, "unit_price", updated.GetString("unit_price"), "10")
	assertDecimal(t, "item_total", updated.GetString("item_total"), "40")

	revs, _ := f.svc.ListRevisions(item.Id)
	if len(revs) != 1 || !revs[0].OldHeight.Valid {
		t.Errorf("revisions = %+v, want one with old_height 2", revs)
	}
}

func TestUpdateItem_NullCountResetsToOne(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	item := f.pieces(t, session.Id, "Door D10", 5)

	updated, err := f.svc.UpdateItem(context.Background(), session.Id, item.Id, ItemPatch{Count: ClearDecimal()}, supervisor)
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	assertDecimal(t, "count", updated.GetString("count"), "1")
	assertDecimal(t, "item_total", updated.GetString("item_total"), "10")
}

func TestUpdateItem_WeightEditKeepsOldWeight(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	ctx := context.Background()
	rebar := testhelpers.CreateTestEntry(t, f.app, f.priceList.Id, "130201", "Rebar", "کیلوگرم", "2.00")

	item, err := f.svc.CreateItem(ctx, session.Id, ItemInput{
		PriceListEntryID: rebar.Id,
		Weight:           nd(decimal.NewFromInt(5)),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	updated, err := f.svc.UpdateItem(ctx, session.Id, item.Id, ItemPatch{Weight: ndp("7")}, supervisor)
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	assertDecimal(t, "quantity", updated.GetString("quantity"), "7")
	assertDecimal(t, "item_total", updated.GetString("item_total"), "14")

	revs, _ := f.svc.ListRevisions(item.Id)
	if len(revs) != 1 {
		t.Fatalf("revisions = %d, want 1", len(revs))
	}
	if !revs[0].OldWeight.Valid || !revs[0].OldWeight.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Errorf("old_weight = %v, want 5", revs[0].OldWeight)
	}
	if !revs[0].OldQuantity.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Errorf("old_quantity = %v, want 5", revs[0].OldQuantity)
	}
}

func TestCreateItem_ConcurrentWritersStayConsistent(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CreateItem(ctx, session.Id, ItemInput{
				PriceListEntryID: f.unitEntry.Id,
				RowDescription:   fmt.Sprintf("Door %02d", i),
			}, supervisor)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("CreateItem() error = %v", err)
		}
	}

	if got := reload(t, f.app, collections.MeasurementSessions, session.Id).GetInt("items_count"); got != writers {
		t.Errorf("items_count = %d, want %d", got, writers)
	}
	status, err := f.svc.GetSessionStatus(ctx, session.Id)
	if err != nil {
		t.Fatalf("GetSessionStatus() error = %v", err)
	}
	if !status.TotalAmount.Equal(decimal.NewFromInt(200)) || status.ActiveItemsCount != writers {
		t.Errorf("status = total %s, items %d", status.TotalAmount, status.ActiveItemsCount)
	}

	items, _ := findActiveItems(f.app, session.Id)
	seen := make(map[int]bool)
	for _, item := range items {
		order := item.GetInt("sort_order")
		if seen[order] {
			t.Errorf("sort_order %d assigned twice", order)
		}
		seen[order] = true
	}
}
