package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ValidationError represents a single field-level error on one row.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ParsedEntry is one price-list row read from an import file. RawPrices holds
// every non-empty price-like column under its canonical name; UnitPrice is
// the normalized value resolved from it.
type ParsedEntry struct {
	Row         int
	RowNumber   string
	Description string
	Unit        string
	RawPrices   map[string]any
	UnitPrice   decimal.Decimal
}

// PriceListValidation is returned after parsing and validating an uploaded
// price-list file.
type PriceListValidation struct {
	TotalRows int               `json:"total_rows"`
	ValidRows int               `json:"valid_rows"`
	ErrorRows int               `json:"error_rows"`
	Errors    []ValidationError `json:"errors"`
	Entries   []ParsedEntry     `json:"-"`
	FileName  string            `json:"-"`
}

// importHeaderAliases maps normalized header labels to canonical column keys.
var importHeaderAliases = map[string]string{
	"row_number":  "row_number",
	"row number":  "row_number",
	"row":         "row_number",
	"code":        "row_number",
	"ردیف":        "row_number",
	"شماره ردیف":  "row_number",
	"شماره":       "row_number",
	"description": "description",
	"شرح":         "description",
	"شرح ردیف":    "description",
	"شرح عملیات":  "description",
	"unit":        "unit",
	"uom":         "unit",
	"واحد":        "unit",
	"price":       "price",
	"قیمت":        "price",
	"unit_price":  "unit_price",
	"unit price":  "unit_price",
	"فی":          "unit_price",
	"قیمت واحد":   "unit_price",
	"rate":        "rate",
	"baha":        "baha",
	"بها":         "baha",
	"بهای واحد":   "baha",
}

var importFieldLabels = map[string]string{
	"row_number":  "Row Number",
	"description": "Description",
	"unit":        "Unit",
}

// Column limits, in characters. They match the max of the price_list_entries
// text fields so a parsed row always saves.
const (
	MaxRowNumberLength   = 50
	MaxDescriptionLength = 5000
	MaxUnitLength        = 100
)

var importFieldLimits = map[string]int{
	"row_number":  MaxRowNumberLength,
	"description": MaxDescriptionLength,
	"unit":        MaxUnitLength,
}

// parseCSV reads a CSV file and returns headers + data rows.
func parseCSV(file io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(allRows) < 2 {
		return nil, nil, fmt.Errorf("file must contain a header row and at least one data row")
	}
	return allRows[0], allRows[1:], nil
}

// parseExcel reads an xlsx file and returns headers + data rows from the first sheet.
func parseExcel(file io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("file must contain a header row and at least one data row")
	}
	return rows[0], rows[1:], nil
}

// mapImportHeaders maps uploaded column headers to canonical column keys.
// Unrecognized columns map to "" and are returned separately.
func mapImportHeaders(headers []string) ([]string, []string) {
	mapped := make([]string, len(headers))
	var unrecognized []string
	for i, h := range headers {
		norm := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		norm = strings.TrimSpace(strings.TrimSuffix(norm, "*"))
		if key, ok := importHeaderAliases[norm]; ok {
			mapped[i] = key
		} else {
			unrecognized = append(unrecognized, h)
		}
	}
	return mapped, unrecognized
}

// ParsePriceListFile parses and validates an uploaded price-list file. The
// price of each row is normalized here, once, by probing the raw price
// columns in PriceFieldCandidates order.
func ParsePriceListFile(file io.Reader, fileName string) (*PriceListValidation, error) {
	var headers []string
	var dataRows [][]string
	var err error

	lowerName := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lowerName, ".csv"):
		headers, dataRows, err = parseCSV(file)
	case strings.HasSuffix(lowerName, ".xlsx"):
		headers, dataRows, err = parseExcel(file)
	default:
		return nil, fmt.Errorf("unsupported file format: must be .csv or .xlsx")
	}
	if err != nil {
		return nil, err
	}

	columnKeys, _ := mapImportHeaders(headers)
	if !containsKey(columnKeys, "row_number") || !containsKey(columnKeys, "description") || !containsKey(columnKeys, "unit") {
		return nil, fmt.Errorf("file must have row number, description and unit columns")
	}

	result := &PriceListValidation{
		TotalRows: len(dataRows),
		FileName:  fileName,
		Entries:   make([]ParsedEntry, 0, len(dataRows)),
	}
	seen := make(map[string]int)

	for rowIdx, row := range dataRows {
		rowNum := rowIdx + 2 // 1-indexed, +1 for header row
		values := make(map[string]string)
		for colIdx, key := range columnKeys {
			if key == "" || colIdx >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[colIdx]); v != "" {
				values[key] = v
			}
		}
		if len(values) == 0 {
			result.TotalRows--
			continue
		}

		var rowErrors []ValidationError
		for _, key := range []string{"row_number", "description", "unit"} {
			if values[key] == "" {
				label := importFieldLabels[key]
				rowErrors = append(rowErrors, ValidationError{
					Row:     rowNum,
					Field:   label,
					Message: fmt.Sprintf("%s is required", label),
				})
			}
		}
		for _, key := range []string{"row_number", "description", "unit"} {
			if n := utf8.RuneCountInString(values[key]); n > importFieldLimits[key] {
				label := importFieldLabels[key]
				rowErrors = append(rowErrors, ValidationError{
					Row:     rowNum,
					Field:   label,
					Message: fmt.Sprintf("%s is %d characters long; the limit is %d", label, n, importFieldLimits[key]),
				})
			}
		}
		if rn := values["row_number"]; rn != "" {
			if first, dup := seen[rn]; dup {
				rowErrors = append(rowErrors, ValidationError{
					Row:     rowNum,
					Field:   "Row Number",
					Message: fmt.Sprintf("Row number %q already appears on row %d", rn, first),
				})
			} else {
				seen[rn] = rowNum
			}
		}

		raw := make(map[string]any)
		for _, name := range PriceFieldCandidates {
			if v, ok := values[name]; ok {
				raw[name] = v
			}
		}

		if len(rowErrors) > 0 {
			result.Errors = append(result.Errors, rowErrors...)
		}
		result.Entries = append(result.Entries, ParsedEntry{
			Row:         rowNum,
			RowNumber:   values["row_number"],
			Description: values["description"],
			Unit:        values["unit"],
			RawPrices:   raw,
			UnitPrice:   ResolveUnitPrice(raw),
		})
	}

	errorRowSet := make(map[int]bool)
	for _, e := range result.Errors {
		errorRowSet[e.Row] = true
	}
	result.ErrorRows = len(errorRowSet)
	result.ValidRows = result.TotalRows - result.ErrorRows
	return result, nil
}

func containsKey(keys []string, want string) bool {
	for _, k := range keys {
		if k == want {
			return true
		}
	}
	return false
}

// GenerateErrorReport creates a downloadable .xlsx file from validation errors.
func GenerateErrorReport(errors []ValidationError) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Errors"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DC2626"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	f.SetCellValue(sheet, "A1", "Row #")
	f.SetCellValue(sheet, "B1", "Field")
	f.SetCellValue(sheet, "C1", "Error")
	f.SetCellStyle(sheet, "A1", "C1", headerStyle)
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 22)
	f.SetColWidth(sheet, "C", "C", 55)

	for i, e := range errors {
		row := fmt.Sprintf("%d", i+2)
		f.SetCellValue(sheet, "A"+row, e.Row)
		f.SetCellValue(sheet, "B"+row, sanitizeExcelCell(e.Field))
		f.SetCellValue(sheet, "C"+row, sanitizeExcelCell(e.Message))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write error report: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeExcelCell prevents formula injection by prefixing dangerous leading
// characters with a single quote.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

// thinBorders returns thin borders on all four sides.
func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{Type: side, Color: "#000000", Style: 1}
	}
	return borders
}
