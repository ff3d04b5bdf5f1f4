package handlers

import (
	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/measurements"
)

// RegisterRoutes binds the measurement API to the PocketBase router.
func RegisterRoutes(se *core.ServeEvent, svc *measurements.Service) {
	api := se.Router.Group("/api/measure")
	api.BindFunc(ActorMiddleware())

	// ── Projects ─────────────────────────────────────────────
	api.POST("/projects/{projectId}/sessions", HandleCreateSession(svc))
	api.GET("/projects/{projectId}/summary", HandleProjectSummary(svc))
	api.POST("/projects/{projectId}/entries/{entryId}/rollup", HandleProjectEntryRollup(svc))

	// ── Sessions ─────────────────────────────────────────────
	api.GET("/sessions/{sessionId}/status", HandleSessionStatus(svc))
	api.GET("/sessions/{sessionId}/groups", HandleSessionGroups(svc))
	api.PUT("/sessions/{sessionId}/vat", HandleSessionVAT(svc))
	api.POST("/sessions/{sessionId}/submit", HandleSessionTransition(svc, ActionSubmit))
	api.POST("/sessions/{sessionId}/approve", HandleSessionTransition(svc, ActionApprove))
	api.POST("/sessions/{sessionId}/reject", HandleSessionTransition(svc, ActionReject))

	// ── Line items ───────────────────────────────────────────
	api.POST("/sessions/{sessionId}/items", HandleCreateItem(svc))
	api.PATCH("/sessions/{sessionId}/items/{itemId}", HandleUpdateItem(svc))
	api.DELETE("/sessions/{sessionId}/items/{itemId}", HandleDeleteItem(svc))
	api.GET("/sessions/{sessionId}/items/{itemId}/revisions", HandleListRevisions(svc))

	// ── Price lists ──────────────────────────────────────────
	api.GET("/price-lists/template", HandlePriceListTemplate())
	api.POST("/price-lists/{priceListId}/import", HandlePriceListImport(svc))
	api.POST("/price-lists/{priceListId}/import/errors", HandlePriceListErrorReport())
	api.GET("/price-list-entries/{entryId}/report", HandleEntryReport(svc))
}
