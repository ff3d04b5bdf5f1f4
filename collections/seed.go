package collections

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/config"
	"projectmeasure/services"
)

// ── Definition structs ───────────────────────────────────────────────────

type entryDef struct {
	rowNumber   string
	description string
	unit        string
	// prices holds the source columns as they appear in published lists.
	prices map[string]any
}

type priceListDef struct {
	name       string
	discipline string
	year       int
	entries    []entryDef
}

type projectDef struct {
	name           string
	code           string
	contractAmount string
}

var seedProjects = []projectDef{
	{name: "مجتمع اداری پردیس - بلوک A", code: "PRD-A", contractAmount: "185000000000"},
	{name: "Hospital Annex - Phase 2", code: "HSP-2", contractAmount: "64000000000"},
}

var seedPriceLists = []priceListDef{
	{
		name: "فهرست بهای ابنیه ۱۴۰۳", discipline: "civil", year: 1403,
		entries: []entryDef{
			{"010101", "خاکبرداری با ماشین در زمین‌های خاکی", "متر مکعب", map[string]any{"baha": "۹۵٬۰۰۰"}},
			{"070201", "بتن ریزی با بتن C25", "متر مکعب", map[string]any{"price": "12,500,000"}},
			{"080102", "تهیه و نصب آرماتور", "کیلوگرم", map[string]any{"unit_price": 385000}},
			{"120301", "اندود گچ و خاک", "متر مربع", map[string]any{"rate": "450000.456"}},
			{"160104", "نصب درب فلزی", "عدد", map[string]any{"price": nil, "baha": "18500000"}},
		},
	},
	{
		name: "فهرست بهای تاسیسات مکانیکی ۱۴۰۳", discipline: "mechanical", year: 1403,
		entries: []entryDef{
			{"020105", "لوله فولادی سیاه ۲ اینچ", "متر", map[string]any{"price": "2150000"}},
			{"050301", "نصب فن کویل سقفی", "عدد", map[string]any{"price": "48000000"}},
			{"090204", "عایق کاری کانال", "m2", map[string]any{"baha": "1,320,000"}},
		},
	},
	{
		name: "فهرست بهای تاسیسات برقی ۱۴۰۳", discipline: "electrical", year: 1403,
		entries: []entryDef{
			{"030101", "کابل مسی ۴×۱۶", "meter", map[string]any{"price": "3650000"}},
			{"060210", "تابلو توزیع فرعی", "each", map[string]any{"price": "215000000"}},
			{"110405", "سینی کابل گالوانیزه", "kg", map[string]any{"rate": "940000"}},
		},
	},
}

// Seed populates projects and price lists with demo data. It is safe to call
// on every startup because it returns early if any project records already
// exist.
func Seed(app core.App) error {
	logger := config.GetLogger()

	// ── idempotency: skip if projects already exist ──────────────────
	projectsCol, err := app.FindCollectionByNameOrId(Projects)
	if err != nil {
		return fmt.Errorf("seed: could not find projects collection: %w", err)
	}
	existing, err := app.FindAllRecords(projectsCol)
	if err != nil {
		return fmt.Errorf("seed: could not query projects: %w", err)
	}
	if len(existing) > 0 {
		return nil // already seeded
	}

	logger.Info("seed: projects collection is empty, inserting seed data")

	priceListsCol, err := app.FindCollectionByNameOrId(PriceLists)
	if err != nil {
		return fmt.Errorf("seed: could not find price_lists collection: %w", err)
	}
	entriesCol, err := app.FindCollectionByNameOrId(PriceListEntries)
	if err != nil {
		return fmt.Errorf("seed: could not find price_list_entries collection: %w", err)
	}

	entryCount := 0
	err = app.RunInTransaction(func(txApp core.App) error {
		for _, p := range seedProjects {
			r := core.NewRecord(projectsCol)
			r.Set("name", p.name)
			r.Set("code", p.code)
			r.Set("contract_amount", p.contractAmount)
			r.Set("status", "active")
			r.Set("is_active", true)
			if err := txApp.Save(r); err != nil {
				return fmt.Errorf("seed: save project %s: %w", p.code, err)
			}
		}

		for _, pl := range seedPriceLists {
			listRecord := core.NewRecord(priceListsCol)
			listRecord.Set("name", pl.name)
			listRecord.Set("discipline", pl.discipline)
			listRecord.Set("year", pl.year)
			listRecord.Set("is_active", true)
			if err := txApp.Save(listRecord); err != nil {
				return fmt.Errorf("seed: save price list %s: %w", pl.discipline, err)
			}

			for _, e := range pl.entries {
				r := core.NewRecord(entriesCol)
				r.Set("price_list", listRecord.Id)
				r.Set("row_number", e.rowNumber)
				r.Set("description", e.description)
				r.Set("unit", e.unit)
				r.Set("raw_prices", e.prices)
				r.Set("unit_price", services.ResolveUnitPrice(e.prices).StringFixed(2))
				r.Set("is_active", true)
				if err := txApp.Save(r); err != nil {
					return fmt.Errorf("seed: save entry %s: %w", e.rowNumber, err)
				}
				entryCount++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Infof("seed: all seed data inserted successfully (%d projects, %d price lists, %d entries)",
		len(seedProjects), len(seedPriceLists), entryCount)
	return nil
}
