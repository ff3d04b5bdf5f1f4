package handlers

import (
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/measurements"
)

// HandleEntryReport rebuilds and returns the financial report of one
// price-list entry, optionally limited by ?projects=a,b.
func HandleEntryReport(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var projectIDs []string
		if raw := e.Request.URL.Query().Get("projects"); raw != "" {
			projectIDs = strings.Split(raw, ",")
		}

		report, err := svc.EntryReport(e.Request.Context(), e.Request.PathValue("entryId"), projectIDs)
		if err != nil {
			return ErrorJSON(e, "HandleEntryReport", err)
		}
		return e.JSON(http.StatusOK, report)
	}
}

// HandleProjectEntryRollup rebuilds one entry's usage within a project.
func HandleProjectEntryRollup(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		record, err := svc.RebuildDetailedMeasurement(
			e.Request.Context(),
			e.Request.PathValue("projectId"),
			e.Request.PathValue("entryId"),
		)
		if err != nil {
			return ErrorJSON(e, "HandleProjectEntryRollup", err)
		}
		return e.JSON(http.StatusOK, record)
	}
}
