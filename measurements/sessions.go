package measurements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"projectmeasure/collections"
	"projectmeasure/services"
)

// CreateSessionInput describes a new measurement session. An empty
// SessionNumber is generated from the discipline's last session.
type CreateSessionInput struct {
	PriceListID   string    `json:"price_list"`
	SessionNumber string    `json:"session_number"`
	SessionDate   time.Time `json:"session_date"`
	Description   string    `json:"description"`
}

func (in CreateSessionInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.PriceListID, validation.Required),
		validation.Field(&in.SessionNumber, validation.Length(0, 32)),
		validation.Field(&in.Description, validation.Length(0, 2000)),
	)
}

// CreateSession creates a draft session under the project's lock, numbers it
// per discipline and initializes its financial status.
func (s *Service) CreateSession(ctx context.Context, projectID string, in CreateSessionInput, actor Actor) (*core.Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	release, err := lockAll(ctx, s.locker, projectLockKey(projectID))
	if err != nil {
		return nil, err
	}
	defer release()

	var session *core.Record
	err = s.app.RunInTransaction(func(txApp core.App) error {
		if _, err := findActiveRecord(txApp, collections.Projects, projectID); err != nil {
			return err
		}
		priceList, err := findActiveRecord(txApp, collections.PriceLists, in.PriceListID)
		if err != nil {
			return err
		}
		discipline := services.Discipline(priceList.GetString("discipline"))

		number := strings.TrimSpace(in.SessionNumber)
		if number == "" {
			if number, err = nextSessionNumber(txApp, projectID, discipline); err != nil {
				return err
			}
		}

		col, err := txApp.FindCollectionByNameOrId(collections.MeasurementSessions)
		if err != nil {
			return fmt.Errorf("find sessions collection: %w", err)
		}
		date := in.SessionDate
		if date.IsZero() {
			date = time.Now().UTC()
		}

		session = core.NewRecord(col)
		session.Set("project", projectID)
		session.Set("price_list", priceList.Id)
		session.Set("discipline", string(discipline))
		session.Set("session_number", number)
		session.Set("session_date", date)
		session.Set("status", collections.SessionDraft)
		session.Set("items_count", 0)
		session.Set("description", in.Description)
		session.Set("is_active", true)
		session.Set("created_by", actor.ID)
		if err := txApp.Save(session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}

		if _, err := s.recomputeSessionStatus(txApp, session.Id); err != nil {
			return err
		}
		_, err = s.recomputeProjectSummary(txApp, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]any{
		"project": projectID,
		"session": session.Id,
		"number":  session.GetString("session_number"),
	}).Info("session created")
	return session, nil
}

// nextSessionNumber continues the sequence of the project's most recent
// session in the discipline.
func nextSessionNumber(app core.App, projectID string, discipline services.Discipline) (string, error) {
	recent, err := app.FindRecordsByFilter(
		collections.MeasurementSessions,
		"project = {:projectId} && discipline = {:discipline}",
		"-created,-session_number",
		1, 0,
		map[string]any{"projectId": projectID, "discipline": string(discipline)},
	)
	if err != nil {
		return "", fmt.Errorf("find latest %s session of project %s: %w", discipline, projectID, err)
	}
	previous := ""
	if len(recent) > 0 {
		previous = recent[0].GetString("session_number")
	}
	return services.NextSessionNumber(discipline, previous), nil
}

// sessionTransitions lists the allowed status moves.
var sessionTransitions = map[string][]string{
	collections.SessionSubmitted: {collections.SessionDraft, collections.SessionRejected},
	collections.SessionApproved:  {collections.SessionSubmitted},
	collections.SessionRejected:  {collections.SessionSubmitted},
}

func canTransition(from, to string) bool {
	for _, allowed := range sessionTransitions[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

func (s *Service) SubmitSession(ctx context.Context, sessionID string, actor Actor) (*core.Record, error) {
	return s.transitionSession(ctx, sessionID, collections.SessionSubmitted, actor)
}

// ApproveSession marks the session approved and stamps its financial status
// with the approver. Approval needs an actor role.
func (s *Service) ApproveSession(ctx context.Context, sessionID string, actor Actor) (*core.Record, error) {
	if strings.TrimSpace(actor.Role) == "" {
		return nil, ErrMissingRole
	}
	return s.transitionSession(ctx, sessionID, collections.SessionApproved, actor)
}

func (s *Service) RejectSession(ctx context.Context, sessionID string, actor Actor) (*core.Record, error) {
	return s.transitionSession(ctx, sessionID, collections.SessionRejected, actor)
}

func (s *Service) transitionSession(ctx context.Context, sessionID, to string, actor Actor) (*core.Record, error) {
	var session *core.Record
	err := s.withSessionLocks(ctx, sessionID, func(txApp core.App, locked *core.Record) error {
		session = locked
		from := session.GetString("status")
		if !canTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		session.Set("status", to)
		if err := txApp.Save(session); err != nil {
			return fmt.Errorf("save session status: %w", err)
		}

		status, err := sessionStatusRecord(txApp, session.Id)
		if err != nil {
			return err
		}
		approved := to == collections.SessionApproved
		status.Set("is_approved", approved)
		if approved {
			status.Set("approval_date", types.NowDateTime())
			status.Set("approved_by", actor.ID)
		} else {
			status.Set("approval_date", "")
			status.Set("approved_by", "")
		}
		if err := txApp.Save(status); err != nil {
			return fmt.Errorf("save approval of session %s: %w", session.Id, err)
		}

		_, err = s.recomputeProjectSummary(txApp, session.GetString("project"))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]any{
		"session": sessionID,
		"status":  to,
		"actor":   actor.ID,
	}).Info("session status changed")
	return session, nil
}

// SetSessionVATRate overrides the VAT rate of one session and recomputes
// its totals.
func (s *Service) SetSessionVATRate(ctx context.Context, sessionID string, rate decimal.Decimal) (*core.Record, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, validation.Errors{"vat_rate": errors.New("must be between 0 and 100")}
	}

	var status *core.Record
	err := s.withSessionLocks(ctx, sessionID, func(txApp core.App, session *core.Record) error {
		var err error
		if status, err = sessionStatusRecord(txApp, session.Id); err != nil {
			return err
		}
		status.Set("vat_rate", rate.StringFixed(2))
		if err := txApp.Save(status); err != nil {
			return fmt.Errorf("save vat rate: %w", err)
		}
		_, err = s.recomputeProjectSummary(txApp, session.GetString("project"))
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// withSessionLocks loads the session, takes the project and session locks in
// that order and runs fn in a transaction with the session reloaded.
func (s *Service) withSessionLocks(ctx context.Context, sessionID string, fn func(txApp core.App, session *core.Record) error) error {
	session, err := findActiveRecord(s.app, collections.MeasurementSessions, sessionID)
	if err != nil {
		return err
	}

	release, err := lockAll(ctx, s.locker,
		projectLockKey(session.GetString("project")),
		sessionLockKey(session.Id),
	)
	if err != nil {
		return err
	}
	defer release()

	return s.app.RunInTransaction(func(txApp core.App) error {
		locked, err := findActiveRecord(txApp, collections.MeasurementSessions, sessionID)
		if err != nil {
			return err
		}
		return fn(txApp, locked)
	})
}
