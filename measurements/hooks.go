package measurements

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"

	"projectmeasure/collections"
)

// bindRecordHooks recomputes session status and project summary rows on
// every save, whether the write comes from this service, the admin UI or
// the records API. Handler ids keep a second Service on the same app from
// binding twice.
func (s *Service) bindRecordHooks() {
	fillStatus := func(e *core.RecordEvent) error {
		if err := s.fillSessionStatus(e.App, e.Record); err != nil {
			return err
		}
		return e.Next()
	}
	fillSummary := func(e *core.RecordEvent) error {
		if err := s.fillProjectSummary(e.App, e.Record); err != nil {
			return err
		}
		return e.Next()
	}

	s.app.OnRecordCreate(collections.SessionFinancialStatus).Bind(&hook.Handler[*core.RecordEvent]{
		Id: "measurementsStatusCreate", Func: fillStatus,
	})
	s.app.OnRecordUpdate(collections.SessionFinancialStatus).Bind(&hook.Handler[*core.RecordEvent]{
		Id: "measurementsStatusUpdate", Func: fillStatus,
	})
	s.app.OnRecordCreate(collections.ProjectFinancialSummaries).Bind(&hook.Handler[*core.RecordEvent]{
		Id: "measurementsSummaryCreate", Func: fillSummary,
	})
	s.app.OnRecordUpdate(collections.ProjectFinancialSummaries).Bind(&hook.Handler[*core.RecordEvent]{
		Id: "measurementsSummaryUpdate", Func: fillSummary,
	})
}
