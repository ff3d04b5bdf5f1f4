package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/measurements"
)

// HandleCreateItem adds a line item to a session.
func HandleCreateItem(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var in measurements.ItemInput
		if err := e.BindBody(&in); err != nil {
			return badRequest(e, "Invalid request body")
		}

		item, err := svc.CreateItem(e.Request.Context(), e.Request.PathValue("sessionId"), in, requestActor(e))
		if err != nil {
			return ErrorJSON(e, "HandleCreateItem", err)
		}
		return e.JSON(http.StatusCreated, item)
	}
}

// HandleUpdateItem applies a partial edit to a line item. Dimensional
// changes record a revision first.
func HandleUpdateItem(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var patch measurements.ItemPatch
		if err := e.BindBody(&patch); err != nil {
			return badRequest(e, "Invalid request body")
		}

		item, err := svc.UpdateItem(
			e.Request.Context(),
			e.Request.PathValue("sessionId"),
			e.Request.PathValue("itemId"),
			patch,
			requestActor(e),
		)
		if err != nil {
			return ErrorJSON(e, "HandleUpdateItem", err)
		}
		return e.JSON(http.StatusOK, item)
	}
}

// HandleDeleteItem deactivates a line item.
func HandleDeleteItem(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		err := svc.DeleteItem(
			e.Request.Context(),
			e.Request.PathValue("sessionId"),
			e.Request.PathValue("itemId"),
			requestActor(e),
		)
		if err != nil {
			return ErrorJSON(e, "HandleDeleteItem", err)
		}
		return e.NoContent(http.StatusNoContent)
	}
}

// HandleListRevisions returns an item's revision history, newest first.
func HandleListRevisions(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		revisions, err := svc.ListRevisions(e.Request.PathValue("itemId"))
		if err != nil {
			return ErrorJSON(e, "HandleListRevisions", err)
		}
		if revisions == nil {
			revisions = []measurements.Revision{}
		}
		return e.JSON(http.StatusOK, revisions)
	}
}
