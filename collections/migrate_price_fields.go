package collections

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/config"
	"projectmeasure/services"
)

// MigratePriceFields fills unit_price on entries that were stored with only
// their source price columns. Safe to call on every startup -- returns early
// if nothing to migrate.
func MigratePriceFields(app core.App) error {
	logger := config.GetLogger()

	entriesCol, err := app.FindCollectionByNameOrId(PriceListEntries)
	if err != nil {
		return fmt.Errorf("migrate_prices: could not find price_list_entries collection: %w", err)
	}

	pending, err := app.FindRecordsByFilter(
		entriesCol,
		"unit_price = ''",
		"",
		0,
		0,
		nil,
	)
	if err != nil {
		return fmt.Errorf("migrate_prices: could not query entries: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	logger.Infof("migrate_prices: found %d entr(ies) without a normalized unit price", len(pending))

	for _, entry := range pending {
		raw := map[string]any{}
		if err := entry.UnmarshalJSONField("raw_prices", &raw); err != nil {
			logger.Warnf("migrate_prices: entry %s has unreadable raw_prices: %v", entry.Id, err)
		}

		price := services.ResolveUnitPrice(raw)
		entry.Set("unit_price", price.StringFixed(2))
		if err := app.Save(entry); err != nil {
			logger.Errorf("migrate_prices: failed to update entry %s: %v", entry.Id, err)
			continue
		}
	}

	logger.Info("migrate_prices: price normalization complete")
	return nil
}
