package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/measurements"
	"projectmeasure/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HandlePriceListImport validates an uploaded CSV or XLSX file and upserts
// its rows into the price list. A file with row errors writes nothing and
// is answered with 422 and the errors.
// Route: POST /api/measure/price-lists/{priceListId}/import
func HandlePriceListImport(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		// Parse multipart form (max 10MB)
		if err := e.Request.ParseMultipartForm(10 << 20); err != nil {
			return badRequest(e, "File too large or invalid form data")
		}

		file, header, err := e.Request.FormFile("file")
		if err != nil {
			return badRequest(e, "Please select a file to upload")
		}
		defer file.Close()

		name := strings.ToLower(header.Filename)
		if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".xlsx") {
			return badRequest(e, "Only .csv and .xlsx files are supported")
		}

		result, err := svc.ImportPriceList(e.Request.Context(), e.Request.PathValue("priceListId"), file, header.Filename)
		if err != nil {
			return ErrorJSON(e, "HandlePriceListImport", err)
		}
		if result.RolledBack {
			return e.JSON(http.StatusUnprocessableEntity, result)
		}
		return e.JSON(http.StatusOK, result)
	}
}

// HandlePriceListErrorReport turns posted import errors into an Excel file.
// Route: POST /api/measure/price-lists/{priceListId}/import/errors
func HandlePriceListErrorReport() func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var rowErrors []services.ValidationError
		if err := json.NewDecoder(e.Request.Body).Decode(&rowErrors); err != nil {
			return badRequest(e, "Invalid error data")
		}

		xlsxBytes, err := services.GenerateErrorReport(rowErrors)
		if err != nil {
			return ErrorJSON(e, "HandlePriceListErrorReport", err)
		}

		filename := fmt.Sprintf("pricelist_%s_errors.xlsx", e.Request.PathValue("priceListId"))
		e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		return e.Blob(http.StatusOK, xlsxContentType, xlsxBytes)
	}
}

// HandlePriceListTemplate downloads an empty import template.
// Route: GET /api/measure/price-lists/template
func HandlePriceListTemplate() func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		xlsxBytes, err := services.GeneratePriceListTemplate()
		if err != nil {
			return ErrorJSON(e, "HandlePriceListTemplate", err)
		}
		e.Response.Header().Set("Content-Disposition", `attachment; filename="pricelist_template.xlsx"`)
		return e.Blob(http.StatusOK, xlsxContentType, xlsxBytes)
	}
}
