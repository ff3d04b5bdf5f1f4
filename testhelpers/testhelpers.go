// Package testhelpers provides utilities for testing PocketBase-based applications.
package testhelpers

import (
	"strings"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/collections"
)

// NewTestApp creates a PocketBase instance backed by a temporary directory.
// It bootstraps the app, runs collections.Setup to create all tables and
// binds the record hooks.
// The temporary directory is cleaned up automatically when the test finishes.
func NewTestApp(t *testing.T) *pocketbase.PocketBase {
	t.Helper()

	tmpDir := t.TempDir()
	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: tmpDir,
	})

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	collections.Setup(app)
	collections.RegisterHooks(app)

	return app
}

func newRecord(t *testing.T, app core.App, collection string) *core.Record {
	t.Helper()

	col, err := app.FindCollectionByNameOrId(collection)
	if err != nil {
		t.Fatalf("failed to find %s collection: %v", collection, err)
	}
	return core.NewRecord(col)
}

func save(t *testing.T, app core.App, record *core.Record, what string) *core.Record {
	t.Helper()

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save test %s: %v", what, err)
	}
	return record
}

// CreateTestProject creates an active project with the given contract amount.
func CreateTestProject(t *testing.T, app core.App, name, contractAmount string) *core.Record {
	t.Helper()

	record := newRecord(t, app, collections.Projects)
	record.Set("name", name)
	record.Set("contract_amount", contractAmount)
	record.Set("status", "active")
	record.Set("is_active", true)
	return save(t, app, record, "project")
}

// CreateTestPriceList creates an active price list for a discipline.
func CreateTestPriceList(t *testing.T, app core.App, name, discipline string) *core.Record {
	t.Helper()

	record := newRecord(t, app, collections.PriceLists)
	record.Set("name", name)
	record.Set("discipline", discipline)
	record.Set("year", 1403)
	record.Set("is_active", true)
	return save(t, app, record, "price list")
}

// CreateTestEntry creates an active price-list entry with a normalized unit price.
func CreateTestEntry(t *testing.T, app core.App, priceListID, rowNumber, description, unit, unitPrice string) *core.Record {
	t.Helper()

	record := newRecord(t, app, collections.PriceListEntries)
	record.Set("price_list", priceListID)
	record.Set("row_number", rowNumber)
	record.Set("description", description)
	record.Set("unit", unit)
	record.Set("unit_price", unitPrice)
	record.Set("is_active", true)
	return save(t, app, record, "price list entry")
}

// CreateTestSession creates a draft session with an explicit number. The
// discipline is copied from the price list.
func CreateTestSession(t *testing.T, app core.App, projectID, priceListID, number string) *core.Record {
	t.Helper()

	priceList, err := app.FindRecordById(collections.PriceLists, priceListID)
	if err != nil {
		t.Fatalf("failed to find price list %s: %v", priceListID, err)
	}

	record := newRecord(t, app, collections.MeasurementSessions)
	record.Set("project", projectID)
	record.Set("price_list", priceListID)
	record.Set("discipline", priceList.GetString("discipline"))
	record.Set("session_number", number)
	record.Set("session_date", time.Now().UTC())
	record.Set("status", collections.SessionDraft)
	record.Set("is_active", true)
	return save(t, app, record, "session")
}

// CreateTestItem inserts a raw measurement item without running any
// recomputation. Use the measurements service for computed items.
func CreateTestItem(t *testing.T, app core.App, sessionID, entryID, rowDescription string) *core.Record {
	t.Helper()

	record := newRecord(t, app, collections.MeasurementItems)
	record.Set("session", sessionID)
	record.Set("price_list_entry", entryID)
	record.Set("row_description", rowDescription)
	record.Set("count", "1")
	record.Set("quantity", "1")
	record.Set("is_active", true)
	return save(t, app, record, "measurement item")
}

// AssertJSONContains checks that body contains all specified fragments.
func AssertJSONContains(t *testing.T, body string, fragments ...string) {
	t.Helper()

	for _, frag := range fragments {
		if !strings.Contains(body, frag) {
			t.Errorf("expected response to contain %q, but it was not found\nbody (first 500 chars): %s",
				frag, truncate(body, 500))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
