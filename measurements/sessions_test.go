package measurements

import (
	"context"
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase"
	"github.com/shopspring/decimal"

	"projectmeasure/collections"
	"projectmeasure/services"
	"projectmeasure/testhelpers"
)

func TestCreateSession_Numbering(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()

	first := f.session(t)
	if got := first.GetString("session_number"); got != "CV-0001" {
		t.Errorf("first session number = %q, want CV-0001", got)
	}
	if first.GetString("discipline") != "civil" || first.GetString("status") != collections.SessionDraft {
		t.Errorf("session = discipline %q status %q", first.GetString("discipline"), first.GetString("status"))
	}

	if _, err := f.svc.CreateSession(ctx, f.project.Id, CreateSessionInput{
		PriceListID:   f.priceList.Id,
		SessionNumber: "CV-0007",
	}, supervisor); err != nil {
		t.Fatalf("CreateSession(explicit) error = %v", err)
	}

	next := f.session(t)
	if got := next.GetString("session_number"); got != "CV-0008" {
		t.Errorf("next session number = %q, want CV-0008", got)
	}

	electrical := testhelpers.CreateTestPriceList(t, f.app, "Electrical 1403", "electrical")
	el, err := f.svc.CreateSession(ctx, f.project.Id, CreateSessionInput{PriceListID: electrical.Id}, supervisor)
	if err != nil {
		t.Fatalf("CreateSession(electrical) error = %v", err)
	}
	if got := el.GetString("session_number"); got != "EL-0001" {
		t.Errorf("electrical session number = %q, want EL-0001", got)
	}
}

func TestCreateSession_InitializesStatus(t *testing.T) {
	f := newFixture(t, "0")
	session := f.session(t)

	status, err := findStatus(f.app, session.Id)
	if err != nil || status == nil {
		t.Fatalf("status row missing: %v", err)
	}
	if status.GetString("vat_rate") != "9.00" {
		t.Errorf("vat_rate = %q, want 9.00", status.GetString("vat_rate"))
	}
	assertDecimal(t, "total_amount", status.GetString("total_amount"), "0")
}

func TestCreateSession_Errors(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()

	_, err := f.svc.CreateSession(ctx, f.project.Id, CreateSessionInput{}, supervisor)
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Errorf("empty input error = %v, want validation.Errors", err)
	}

	_, err = f.svc.CreateSession(ctx, "missingproject1", CreateSessionInput{PriceListID: f.priceList.Id}, supervisor)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown project error = %v, want ErrNotFound", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, "1000")
	ctx := context.Background()
	session := f.session(t)
	f.pieces(t, session.Id, "Doors", 3)

	if _, err := f.svc.ApproveSession(ctx, session.Id, supervisor); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve draft error = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.svc.SubmitSession(ctx, session.Id, supervisor); err != nil {
		t.Fatalf("SubmitSession() error = %v", err)
	}

	_, err := f.svc.CreateItem(ctx, session.Id, ItemInput{PriceListEntryID: f.unitEntry.Id, RowDescription: "late"}, supervisor)
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("item on submitted session error = %v, want ErrSessionClosed", err)
	}

	if _, err := f.svc.ApproveSession(ctx, session.Id, noRole); !errors.Is(err, ErrMissingRole) {
		t.Errorf("approve without role error = %v, want ErrMissingRole", err)
	}
	approved, err := f.svc.ApproveSession(ctx, session.Id, supervisor)
	if err != nil {
		t.Fatalf("ApproveSession() error = %v", err)
	}
	if approved.GetString("status") != collections.SessionApproved {
		t.Errorf("status = %q, want approved", approved.GetString("status"))
	}

	status, _ := f.svc.GetSessionStatus(ctx, session.Id)
	if !status.IsApproved || status.ApprovedBy != supervisor.ID || status.ApprovalDate == "" {
		t.Errorf("approval bookkeeping = %+v", status)
	}

	summary, err := f.svc.GetProjectSummary(ctx, f.project.Id)
	if err != nil {
		t.Fatalf("GetProjectSummary() error = %v", err)
	}
	if summary.ApprovedSessionsCount != 1 {
		t.Errorf("approved_sessions_count = %d, want 1", summary.ApprovedSessionsCount)
	}
}

func TestRejectSession_ReopensForEdits(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()
	session := f.session(t)

	if _, err := f.svc.SubmitSession(ctx, session.Id, supervisor); err != nil {
		t.Fatalf("SubmitSession() error = %v", err)
	}
	if _, err := f.svc.RejectSession(ctx, session.Id, supervisor); err != nil {
		t.Fatalf("RejectSession() error = %v", err)
	}
	f.pieces(t, session.Id, "after rejection", 1)

	if _, err := f.svc.SubmitSession(ctx, session.Id, supervisor); err != nil {
		t.Errorf("resubmit error = %v", err)
	}
}

func TestSetSessionVATRate(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()
	session := f.session(t)
	f.pieces(t, session.Id, "Doors", 100) // 1000

	status, err := f.svc.SetSessionVATRate(ctx, session.Id, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("SetSessionVATRate() error = %v", err)
	}
	assertDecimal(t, "total_with_vat", status.GetString("total_with_vat"), "1100")

	// The override survives later recomputes.
	f.pieces(t, session.Id, "More doors", 100)
	view, _ := f.svc.GetSessionStatus(ctx, session.Id)
	if !view.TotalWithVAT.Equal(decimal.NewFromInt(2200)) {
		t.Errorf("total_with_vat after new item = %s, want 2200", view.TotalWithVAT)
	}

	_, err = f.svc.SetSessionVATRate(ctx, session.Id, decimal.NewFromInt(-1))
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Errorf("negative rate error = %v, want validation.Errors", err)
	}
}

func TestSequenceLookups_ReturnQueryErrors(t *testing.T) {
	// No measurement collections, so every lookup fails.
	bare := pocketbase.NewWithConfig(pocketbase.Config{DefaultDataDir: t.TempDir()})
	if err := bare.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if number, err := nextSessionNumber(bare, "project1", services.DisciplineCivil); err == nil {
		t.Errorf("nextSessionNumber() = %q, want an error", number)
	}
	if order, err := getNextSortOrder(bare, "session1"); err == nil {
		t.Errorf("getNextSortOrder() = %d, want an error", order)
	}
}
