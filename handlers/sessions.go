package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"projectmeasure/measurements"
	"projectmeasure/services"
)

// HandleCreateSession creates a draft measurement session under a project.
func HandleCreateSession(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		projectID := e.Request.PathValue("projectId")

		var in measurements.CreateSessionInput
		if err := e.BindBody(&in); err != nil {
			return badRequest(e, "Invalid request body")
		}

		session, err := svc.CreateSession(e.Request.Context(), projectID, in, requestActor(e))
		if err != nil {
			return ErrorJSON(e, "HandleCreateSession", err)
		}
		return e.JSON(http.StatusCreated, session)
	}
}

// HandleProjectSummary recomputes and returns a project's financial summary.
func HandleProjectSummary(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		summary, err := svc.GetProjectSummary(e.Request.Context(), e.Request.PathValue("projectId"))
		if err != nil {
			return ErrorJSON(e, "HandleProjectSummary", err)
		}
		return e.JSON(http.StatusOK, summary)
	}
}

// HandleSessionStatus returns a session's financial status.
func HandleSessionStatus(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		status, err := svc.GetSessionStatus(e.Request.Context(), e.Request.PathValue("sessionId"))
		if err != nil {
			return ErrorJSON(e, "HandleSessionStatus", err)
		}
		return e.JSON(http.StatusOK, status)
	}
}

type groupItemView struct {
	ID        string          `json:"id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"item_total"`
}

type descriptionGroupView struct {
	RowDescription string          `json:"row_description"`
	Items          []groupItemView `json:"items"`
	TotalQuantity  decimal.Decimal `json:"total_quantity"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

type priceListGroupView struct {
	EntryID       string                 `json:"price_list_entry"`
	RowNumber     string                 `json:"row_number"`
	Description   string                 `json:"description"`
	Unit          string                 `json:"unit"`
	Descriptions  []descriptionGroupView `json:"descriptions"`
	TotalQuantity decimal.Decimal        `json:"total_quantity"`
	TotalAmount   decimal.Decimal        `json:"total_amount"`
}

func groupViews(groups []services.PriceListGroup) []priceListGroupView {
	out := make([]priceListGroupView, 0, len(groups))
	for _, g := range groups {
		view := priceListGroupView{
			EntryID:       g.Entry.ID,
			RowNumber:     g.Entry.RowNumber,
			Description:   g.Entry.Description,
			Unit:          g.Entry.Unit,
			TotalQuantity: g.TotalQuantity,
			TotalAmount:   g.TotalAmount,
		}
		for _, d := range g.Descriptions {
			dv := descriptionGroupView{
				RowDescription: d.RowDescription,
				TotalQuantity:  d.TotalQuantity,
				TotalAmount:    d.TotalAmount,
			}
			for _, it := range d.Items {
				dv.Items = append(dv.Items, groupItemView{
					ID:        it.ItemID,
					Quantity:  it.Quantity,
					UnitPrice: it.UnitPrice,
					Total:     it.Total,
				})
			}
			view.Descriptions = append(view.Descriptions, dv)
		}
		out = append(out, view)
	}
	return out
}

// HandleSessionGroups returns the session's items grouped by price-list row
// and row description.
func HandleSessionGroups(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		groups, err := svc.GroupSessionItems(e.Request.PathValue("sessionId"))
		if err != nil {
			return ErrorJSON(e, "HandleSessionGroups", err)
		}
		return e.JSON(http.StatusOK, groupViews(groups))
	}
}

// SessionAction is a lifecycle transition exposed over HTTP.
type SessionAction string

const (
	ActionSubmit  SessionAction = "submit"
	ActionApprove SessionAction = "approve"
	ActionReject  SessionAction = "reject"
)

// HandleSessionTransition moves a session through its review lifecycle.
func HandleSessionTransition(svc *measurements.Service, action SessionAction) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		ctx := e.Request.Context()
		sessionID := e.Request.PathValue("sessionId")
		actor := requestActor(e)

		var (
			session *core.Record
			err     error
		)
		switch action {
		case ActionSubmit:
			session, err = svc.SubmitSession(ctx, sessionID, actor)
		case ActionApprove:
			session, err = svc.ApproveSession(ctx, sessionID, actor)
		case ActionReject:
			session, err = svc.RejectSession(ctx, sessionID, actor)
		default:
			return badRequest(e, "Unknown session action")
		}
		if err != nil {
			return ErrorJSON(e, "HandleSessionTransition", err)
		}
		return e.JSON(http.StatusOK, session)
	}
}

type vatRequest struct {
	VATRate decimal.Decimal `json:"vat_rate"`
}

// HandleSessionVAT overrides the VAT rate of one session.
func HandleSessionVAT(svc *measurements.Service) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		var body vatRequest
		if err := e.BindBody(&body); err != nil {
			return badRequest(e, "Invalid request body")
		}
		sessionID := e.Request.PathValue("sessionId")
		if _, err := svc.SetSessionVATRate(e.Request.Context(), sessionID, body.VATRate); err != nil {
			return ErrorJSON(e, "HandleSessionVAT", err)
		}
		status, err := svc.GetSessionStatus(e.Request.Context(), sessionID)
		if err != nil {
			return ErrorJSON(e, "HandleSessionVAT", err)
		}
		return e.JSON(http.StatusOK, status)
	}
}
