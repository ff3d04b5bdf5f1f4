package measurements

import (
	"context"
	"fmt"
	"io"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/collections"
	"projectmeasure/services"
)

const importBatchSize = 100

// ImportResult holds the outcome of a price-list import.
type ImportResult struct {
	Validation *services.PriceListValidation `json:"validation"`
	Created    int                           `json:"created"`
	Updated    int                           `json:"updated"`
	Failed     int                           `json:"failed"`
	Errors     []services.ValidationError    `json:"errors,omitempty"`
	RolledBack bool                          `json:"rolled_back"`
}

// ImportPriceList parses a CSV or XLSX file and upserts its rows into the
// price list by row number. The import is all-or-nothing: a row that fails
// validation stops it before any write, and a failed save rolls back every
// chunk written so far. Rows are saved importBatchSize at a time inside a
// single transaction.
func (s *Service) ImportPriceList(ctx context.Context, priceListID string, file io.Reader, fileName string) (*ImportResult, error) {
	if _, err := findActiveRecord(s.app, collections.PriceLists, priceListID); err != nil {
		return nil, err
	}

	validation, err := services.ParsePriceListFile(file, fileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	result := &ImportResult{Validation: validation}
	if validation.ErrorRows > 0 {
		result.Failed = validation.ErrorRows
		result.Errors = validation.Errors
		result.RolledBack = true
		return result, nil
	}

	col, err := s.app.FindCollectionByNameOrId(collections.PriceListEntries)
	if err != nil {
		return nil, fmt.Errorf("price_list_entries collection not found: %w", err)
	}

	entries := validation.Entries
	var failed *services.ValidationError
	err = s.app.RunInTransaction(func(txApp core.App) error {
		for chunkStart := 0; chunkStart < len(entries); chunkStart += importBatchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunkEnd := chunkStart + importBatchSize
			if chunkEnd > len(entries) {
				chunkEnd = len(entries)
			}

			created, updated, rowErr, err := upsertChunk(txApp, col, priceListID, entries[chunkStart:chunkEnd])
			if err != nil {
				failed = rowErr
				return err
			}
			result.Created += created
			result.Updated += updated
			s.log.WithFields(map[string]any{
				"price_list": priceListID,
				"rows":       chunkEnd,
			}).Debug("price list chunk written")
		}
		return nil
	})
	if err != nil {
		if failed == nil {
			return nil, fmt.Errorf("import price list %s: %w", priceListID, err)
		}
		s.log.WithError(err).Warnf("price list import rolled back at row %d", failed.Row)
		result.Created, result.Updated = 0, 0
		result.Failed = len(entries)
		result.Errors = append(result.Errors, *failed)
		result.RolledBack = true
		return result, nil
	}

	s.log.WithFields(map[string]any{
		"price_list": priceListID,
		"file":       fileName,
		"created":    result.Created,
		"updated":    result.Updated,
	}).Info("price list imported")
	return result, nil
}

// upsertChunk writes one batch of entries. On failure it also returns the
// row that could not be saved.
func upsertChunk(txApp core.App, col *core.Collection, priceListID string, chunk []services.ParsedEntry) (int, int, *services.ValidationError, error) {
	var created, updated int
	for _, e := range chunk {
		existing, err := txApp.FindRecordsByFilter(
			col,
			"price_list = {:priceListId} && row_number = {:rowNumber}",
			"",
			1, 0,
			map[string]any{"priceListId": priceListID, "rowNumber": e.RowNumber},
		)
		if err != nil {
			return 0, 0, &services.ValidationError{Row: e.Row, Field: "Row Number", Message: err.Error()}, err
		}

		record := core.NewRecord(col)
		isNew := len(existing) == 0
		if !isNew {
			record = existing[0]
		}
		record.Set("price_list", priceListID)
		record.Set("row_number", e.RowNumber)
		record.Set("description", e.Description)
		record.Set("unit", e.Unit)
		record.Set("raw_prices", e.RawPrices)
		record.Set("unit_price", e.UnitPrice.StringFixed(2))
		record.Set("is_active", true)

		if err := txApp.Save(record); err != nil {
			return 0, 0, &services.ValidationError{Row: e.Row, Message: fmt.Sprintf("save failed: %v", err)}, err
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil, nil
}
