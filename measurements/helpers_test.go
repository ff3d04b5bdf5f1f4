package measurements

import (
	"context"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"projectmeasure/config"
	"projectmeasure/services"
	"projectmeasure/testhelpers"
)

var (
	supervisor = Actor{ID: "user-1", Role: "supervisor"}
	noRole     = Actor{ID: "user-2"}
)

type fixture struct {
	app       *pocketbase.PocketBase
	svc       *Service
	project   *core.Record
	priceList *core.Record
	areaEntry *core.Record // m2 @ 150
	unitEntry *core.Record // piece @ 10
}

func newFixture(t *testing.T, contractAmount string) *fixture {
	t.Helper()

	app := testhelpers.NewTestApp(t)
	svc := New(app, NewMemoryLocker(), nil, config.Config{
		DefaultVATRate:    services.DefaultVATRate,
		RollupConcurrency: 2,
	})
	project := testhelpers.CreateTestProject(t, app, "Tower B", contractAmount)
	priceList := testhelpers.CreateTestPriceList(t, app, "Civil 1403", "civil")
	return &fixture{
		app:       app,
		svc:       svc,
		project:   project,
		priceList: priceList,
		areaEntry: testhelpers.CreateTestEntry(t, app, priceList.Id, "120301", "Plastering", "متر مربع", "150.00"),
		unitEntry: testhelpers.CreateTestEntry(t, app, priceList.Id, "160104", "Steel door", "عدد", "10.00"),
	}
}

func (f *fixture) session(t *testing.T) *core.Record {
	t.Helper()
	s, err := f.svc.CreateSession(context.Background(), f.project.Id, CreateSessionInput{PriceListID: f.priceList.Id}, supervisor)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return s
}

// pieces adds an item of count n against the piece entry, so its total is 10n.
func (f *fixture) pieces(t *testing.T, sessionID, desc string, n int64) *core.Record {
	t.Helper()
	item, err := f.svc.CreateItem(context.Background(), sessionID, ItemInput{
		PriceListEntryID: f.unitEntry.Id,
		RowDescription:   desc,
		Count:            nd(decimal.NewFromInt(n)),
	}, supervisor)
	if err != nil {
		t.Fatalf("CreateItem(%q) error = %v", desc, err)
	}
	return item
}

func nd(d decimal.Decimal) decimal.NullDecimal { return decimal.NewNullDecimal(d) }

func ndp(s string) OptionalDecimal {
	return SetDecimal(decimal.RequireFromString(s))
}

func assertDecimal(t *testing.T, label string, got string, want string) {
	t.Helper()
	g, err := decimal.NewFromString(got)
	if err != nil {
		t.Errorf("%s = %q, not a decimal", label, got)
		return
	}
	if !g.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}

func reload(t *testing.T, app core.App, collection, id string) *core.Record {
	t.Helper()
	r, err := app.FindRecordById(collection, id)
	if err != nil {
		t.Fatalf("reload %s %s: %v", collection, id, err)
	}
	return r
}
