package collections

import (
	"errors"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/config"
	"projectmeasure/services"
)

// Collection names.
const (
	Projects                  = "projects"
	PriceLists                = "price_lists"
	PriceListEntries          = "price_list_entries"
	MeasurementSessions       = "measurement_sessions"
	MeasurementItems          = "measurement_items"
	ItemRevisions             = "item_revisions"
	SessionFinancialStatus    = "session_financial_status"
	ProjectFinancialSummaries = "project_financial_summaries"
	DetailedMeasurements      = "detailed_measurements"
	DetailedFinancialReports  = "detailed_financial_reports"
)

// Session statuses.
const (
	SessionDraft     = "draft"
	SessionSubmitted = "submitted"
	SessionApproved  = "approved"
	SessionRejected  = "rejected"
)

var disciplineValues = []string{"civil", "mechanical", "electrical", "other"}

// ErrRevisionImmutable is returned by the item_revisions hooks.
var ErrRevisionImmutable = errors.New("item revisions are append-only")

// decimalField adds a text column holding a canonical decimal string.
// NumberField is float64 and would lose exactness on money values.
func decimalField(c *core.Collection, name string) {
	c.Fields.Add(&core.TextField{Name: name, Pattern: `^-?[0-9]+(\.[0-9]+)?$`})
}

func timestamps(c *core.Collection) {
	c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
	c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
}

// Setup programmatically creates/ensures every measurement collection exists.
func Setup(app core.App) {
	projects := ensureCollection(app, Projects, func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "name", Required: true})
		c.Fields.Add(&core.TextField{Name: "code"})
		decimalField(c, "contract_amount")
		c.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			Values:    []string{"active", "completed", "on_hold"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.BoolField{Name: "is_active"})
		timestamps(c)
	})

	priceLists := ensureCollection(app, PriceLists, func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "name", Required: true})
		c.Fields.Add(&core.SelectField{
			Name:      "discipline",
			Required:  true,
			Values:    disciplineValues,
			MaxSelect: 1,
		})
		c.Fields.Add(&core.NumberField{Name: "year", OnlyInt: true})
		c.Fields.Add(&core.BoolField{Name: "is_active"})
		timestamps(c)
	})

	entries := ensureCollection(app, PriceListEntries, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "price_list",
			Required:      true,
			CollectionId:  priceLists.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.TextField{Name: "row_number", Required: true, Max: services.MaxRowNumberLength})
		c.Fields.Add(&core.TextField{Name: "description", Required: true, Max: services.MaxDescriptionLength})
		c.Fields.Add(&core.TextField{Name: "unit", Required: true, Max: services.MaxUnitLength})
		decimalField(c, "unit_price")
		c.Fields.Add(&core.JSONField{Name: "raw_prices", MaxSize: 1 << 16})
		c.Fields.Add(&core.BoolField{Name: "is_active"})
		timestamps(c)
		c.AddIndex("idx_price_list_entries_row", false, "price_list, row_number", "")
	})

	sessions := ensureCollection(app, MeasurementSessions, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "project",
			Required:      true,
			CollectionId:  projects.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.RelationField{
			Name:         "price_list",
			Required:     true,
			CollectionId: priceLists.Id,
			MaxSelect:    1,
		})
		c.Fields.Add(&core.SelectField{
			Name:      "discipline",
			Values:    disciplineValues,
			MaxSelect: 1,
		})
		c.Fields.Add(&core.TextField{Name: "session_number", Required: true})
		c.Fields.Add(&core.DateField{Name: "session_date", Required: true})
		c.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			Values:    []string{SessionDraft, SessionSubmitted, SessionApproved, SessionRejected},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.NumberField{Name: "items_count", OnlyInt: true})
		c.Fields.Add(&core.TextField{Name: "description"})
		c.Fields.Add(&core.BoolField{Name: "is_active"})
		c.Fields.Add(&core.TextField{Name: "created_by"})
		timestamps(c)
		c.AddIndex("idx_measurement_sessions_project", false, "project, discipline", "")
	})

	items := ensureCollection(app, MeasurementItems, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "session",
			Required:      true,
			CollectionId:  sessions.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.RelationField{
			Name:         "price_list_entry",
			Required:     true,
			CollectionId: entries.Id,
			MaxSelect:    1,
		})
		c.Fields.Add(&core.TextField{Name: "row_description"})
		for _, name := range []string{"length", "width", "height", "weight", "count", "quantity", "unit_price", "item_total"} {
			decimalField(c, name)
		}
		c.Fields.Add(&core.NumberField{Name: "sort_order", OnlyInt: true})
		c.Fields.Add(&core.BoolField{Name: "is_active"})
		c.Fields.Add(&core.TextField{Name: "created_by"})
		timestamps(c)
		c.AddIndex("idx_measurement_items_session", false, "session, price_list_entry", "")
	})

	revisions := ensureCollection(app, ItemRevisions, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "item",
			Required:      true,
			CollectionId:  items.Id,
			CascadeDelete: false,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.TextField{Name: "editor_id", Required: true})
		c.Fields.Add(&core.TextField{Name: "editor_role", Required: true})
		for _, name := range []string{"old_length", "old_width", "old_height", "old_weight", "old_count", "old_quantity"} {
			decimalField(c, name)
		}
		c.Fields.Add(&core.TextField{Name: "reason"})
		c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
	})

	// Revision tables created before weights were tracked.
	ensureDecimalField(app, revisions, "old_weight")

	ensureCollection(app, SessionFinancialStatus, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "session",
			Required:      true,
			CollectionId:  sessions.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		for _, name := range []string{"total_quantity", "total_amount", "vat_rate", "total_with_vat"} {
			decimalField(c, name)
		}
		c.Fields.Add(&core.NumberField{Name: "active_items_count", OnlyInt: true})
		c.Fields.Add(&core.NumberField{Name: "unique_pricelist_items_count", OnlyInt: true})
		c.Fields.Add(&core.NumberField{Name: "row_descriptions_count", OnlyInt: true})
		c.Fields.Add(&core.BoolField{Name: "is_approved"})
		c.Fields.Add(&core.DateField{Name: "approval_date"})
		c.Fields.Add(&core.TextField{Name: "approved_by"})
		timestamps(c)
		c.AddIndex("idx_session_financial_status_session", true, "session", "")
	})

	ensureCollection(app, ProjectFinancialSummaries, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "project",
			Required:      true,
			CollectionId:  projects.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		for _, name := range []string{
			"total_quantity", "total_amount", "total_with_vat",
			"civil_quantity", "civil_amount",
			"mechanical_quantity", "mechanical_amount",
			"electrical_quantity", "electrical_amount",
			"progress_percentage",
		} {
			decimalField(c, name)
		}
		c.Fields.Add(&core.JSONField{Name: "discipline_breakdown", MaxSize: 1 << 16})
		c.Fields.Add(&core.BoolField{Name: "over_billed"})
		c.Fields.Add(&core.NumberField{Name: "sessions_count", OnlyInt: true})
		c.Fields.Add(&core.NumberField{Name: "approved_sessions_count", OnlyInt: true})
		c.Fields.Add(&core.NumberField{Name: "items_count", OnlyInt: true})
		c.Fields.Add(&core.NumberField{Name: "unique_items_count", OnlyInt: true})
		c.Fields.Add(&core.DateField{Name: "last_calculated"})
		c.AddIndex("idx_project_financial_summaries_project", true, "project", "")
	})

	ensureCollection(app, DetailedMeasurements, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "project",
			Required:      true,
			CollectionId:  projects.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.RelationField{
			Name:          "price_list_entry",
			Required:      true,
			CollectionId:  entries.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		rollupFields(c)
		c.AddIndex("idx_detailed_measurements_key", true, "project, price_list_entry", "")
	})

	ensureCollection(app, DetailedFinancialReports, func(c *core.Collection) {
		c.Fields.Add(&core.RelationField{
			Name:          "price_list_entry",
			Required:      true,
			CollectionId:  entries.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		})
		c.Fields.Add(&core.TextField{Name: "scope", Required: true})
		rollupFields(c)
		c.Fields.Add(&core.NumberField{Name: "projects_count", OnlyInt: true})
		c.AddIndex("idx_detailed_financial_reports_key", true, "price_list_entry, scope", "")
	})
}

func rollupFields(c *core.Collection) {
	decimalField(c, "total_quantity")
	decimalField(c, "total_amount")
	c.Fields.Add(&core.NumberField{Name: "sessions_count", OnlyInt: true})
	c.Fields.Add(&core.NumberField{Name: "rows_count", OnlyInt: true})
	c.Fields.Add(&core.DateField{Name: "first_used"})
	c.Fields.Add(&core.DateField{Name: "last_used"})
	c.Fields.Add(&core.DateField{Name: "last_rebuilt"})
}

// RegisterHooks binds the model hooks that keep item_revisions append-only.
func RegisterHooks(app core.App) {
	app.OnRecordUpdate(ItemRevisions).BindFunc(func(e *core.RecordEvent) error {
		return ErrRevisionImmutable
	})
	app.OnRecordDelete(ItemRevisions).BindFunc(func(e *core.RecordEvent) error {
		return ErrRevisionImmutable
	})
}

// ensureDecimalField adds a decimal column to an existing collection that
// lacks it.
func ensureDecimalField(app core.App, c *core.Collection, name string) {
	if c.Fields.GetByName(name) != nil {
		return
	}
	decimalField(c, name)
	if err := app.Save(c); err != nil {
		config.GetLogger().Fatalf("collections: failed to add field %q to %q: %v", name, c.Name, err)
	}
	config.GetLogger().Infof("collections: added field %q to %q", name, c.Name)
}

// ensureCollection checks if a collection already exists by name. If it does,
// the existing collection is returned. Otherwise a new base collection is
// created, the addFields callback is invoked to populate its fields, and the
// collection is saved.
func ensureCollection(app core.App, name string, addFields func(*core.Collection)) *core.Collection {
	logger := config.GetLogger()

	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		logger.Debugf("collections: collection %q already exists, skipping creation", name)
		return existing
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		logger.Fatalf("collections: failed to create collection %q: %v", name, err)
	}

	logger.WithField("id", collection.Id).Infof("collections: created collection %q", name)
	return collection
}
