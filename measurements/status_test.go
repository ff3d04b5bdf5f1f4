package measurements

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"projectmeasure/collections"
)

func TestSessionStatus_CountsActiveItemsOnly(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()
	session := f.session(t)

	f.pieces(t, session.Id, "a", 1) // 10
	f.pieces(t, session.Id, "b", 2) // 20
	f.pieces(t, session.Id, "c", 3) // 30
	inactive := f.pieces(t, session.Id, "d", 100)
	if err := f.svc.DeleteItem(ctx, session.Id, inactive.Id, supervisor); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}

	status, err := f.svc.GetSessionStatus(ctx, session.Id)
	if err != nil {
		t.Fatalf("GetSessionStatus() error = %v", err)
	}
	if !status.TotalAmount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("total_amount = %s, want 60", status.TotalAmount)
	}
	if !status.TotalWithVAT.Equal(decimal.RequireFromString("65.40")) {
		t.Errorf("total_with_vat = %s, want 65.40", status.TotalWithVAT)
	}
	if status.ActiveItemsCount != 3 || status.UniquePriceListItemsCount != 1 || status.RowDescriptionsCount != 3 {
		t.Errorf("counts = %+v", status)
	}
}

func TestRecomputeSessionStatus_Idempotent(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()
	session := f.session(t)
	f.pieces(t, session.Id, "a", 7)

	fields := []string{
		"total_quantity", "total_amount", "active_items_count", "unique_pricelist_items_count",
		"row_descriptions_count", "vat_rate", "total_with_vat", "is_approved",
	}
	snapshot := func() map[string]any {
		r, err := f.svc.RecomputeSessionStatus(ctx, session.Id)
		if err != nil {
			t.Fatalf("RecomputeSessionStatus() error = %v", err)
		}
		stored := reload(t, f.app, collections.SessionFinancialStatus, r.Id)
		out := make(map[string]any, len(fields))
		for _, name := range fields {
			out[name] = stored.Get(name)
		}
		return out
	}

	first := snapshot()
	second := snapshot()
	for _, name := range fields {
		if first[name] != second[name] {
			t.Errorf("%s changed between recomputes: %v -> %v", name, first[name], second[name])
		}
	}
}

func TestGroupSessionItems(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()
	session := f.session(t)

	// Insert the higher row number first to check ordering.
	f.pieces(t, session.Id, "Door D1", 1)
	if _, err := f.svc.CreateItem(ctx, session.Id, ItemInput{
		PriceListEntryID: f.areaEntry.Id,
		RowDescription:   "Wall",
		Length:           nd(decimal.NewFromInt(2)),
		Width:            nd(decimal.NewFromInt(2)),
	}, supervisor); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	f.pieces(t, session.Id, "Door D2", 2)

	groups, err := f.svc.GroupSessionItems(session.Id)
	if err != nil {
		t.Fatalf("GroupSessionItems() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Entry.RowNumber != "120301" || groups[1].Entry.RowNumber != "160104" {
		t.Errorf("group order = %s, %s", groups[0].Entry.RowNumber, groups[1].Entry.RowNumber)
	}
	doors := groups[1]
	if len(doors.Descriptions) != 2 || doors.Descriptions[0].RowDescription != "Door D1" {
		t.Errorf("door descriptions = %+v", doors.Descriptions)
	}
	if !doors.TotalAmount.Equal(decimal.NewFromInt(30)) || !doors.TotalQuantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("door totals = %s / %s", doors.TotalQuantity, doors.TotalAmount)
	}
}

func TestMigrateMissingSessionStatusWithService(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()
	session := f.session(t)
	f.pieces(t, session.Id, "a", 4)

	status, _ := findStatus(f.app, session.Id)
	if err := f.app.Delete(status); err != nil {
		t.Fatalf("delete status: %v", err)
	}

	err := collections.MigrateMissingSessionStatus(f.app, func(id string) error {
		_, err := f.svc.RecomputeSessionStatus(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("MigrateMissingSessionStatus() error = %v", err)
	}
	view, _ := f.svc.GetSessionStatus(ctx, session.Id)
	if !view.TotalAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("backfilled total = %s, want 40", view.TotalAmount)
	}
}

func TestDirectWritesToDerivedRowsAreRecomputed(t *testing.T) {
	f := newFixture(t, "2000")
	ctx := context.Background()
	session := f.session(t)
	f.pieces(t, session.Id, "doors", 100) // 1000

	status, err := findStatus(f.app, session.Id)
	if err != nil || status == nil {
		t.Fatalf("findStatus() = %v, %v", status, err)
	}
	status.Set("vat_rate", "20")
	status.Set("total_amount", "1")
	status.Set("total_with_vat", "1")
	if err := f.app.Save(status); err != nil {
		t.Fatalf("save status: %v", err)
	}

	view, err := f.svc.GetSessionStatus(ctx, session.Id)
	if err != nil {
		t.Fatalf("GetSessionStatus() error = %v", err)
	}
	if !view.TotalAmount.Equal(decimal.NewFromInt(1000)) || !view.TotalWithVAT.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("status = amount %s with VAT %s, want 1000 / 1200", view.TotalAmount, view.TotalWithVAT)
	}

	summary, err := findSummary(f.app, f.project.Id)
	if err != nil || summary == nil {
		t.Fatalf("findSummary() = %v, %v", summary, err)
	}
	summary.Set("total_amount", "5")
	summary.Set("over_billed", true)
	if err := f.app.Save(summary); err != nil {
		t.Fatalf("save summary: %v", err)
	}

	stored := reload(t, f.app, collections.ProjectFinancialSummaries, summary.Id)
	assertDecimal(t, "total_amount", stored.GetString("total_amount"), "1000")
	assertDecimal(t, "total_with_vat", stored.GetString("total_with_vat"), "1200")
	assertDecimal(t, "progress_percentage", stored.GetString("progress_percentage"), "50")
	if stored.GetBool("over_billed") {
		t.Error("over_billed should be recomputed to false")
	}
}
