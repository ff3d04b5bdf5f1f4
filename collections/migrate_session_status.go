package collections

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/config"
)

// MigrateMissingSessionStatus calls recompute for every active session that
// has no session_financial_status row yet. Safe to call on every startup.
func MigrateMissingSessionStatus(app core.App, recompute func(sessionID string) error) error {
	logger := config.GetLogger()

	sessionsCol, err := app.FindCollectionByNameOrId(MeasurementSessions)
	if err != nil {
		return fmt.Errorf("migrate_status: could not find measurement_sessions collection: %w", err)
	}

	sessions, err := app.FindRecordsByFilter(sessionsCol, "is_active = true", "created", 0, 0, nil)
	if err != nil {
		return fmt.Errorf("migrate_status: could not query sessions: %w", err)
	}

	backfilled := 0
	for _, session := range sessions {
		existing, _ := app.FindRecordsByFilter(
			SessionFinancialStatus,
			"session = {:sessionId}",
			"",
			1, 0,
			map[string]any{"sessionId": session.Id},
		)
		if len(existing) > 0 {
			continue
		}

		if err := recompute(session.Id); err != nil {
			logger.Errorf("migrate_status: failed to backfill status for session %s: %v", session.Id, err)
			continue
		}
		backfilled++
	}

	if backfilled > 0 {
		logger.Infof("migrate_status: backfilled %d session status row(s)", backfilled)
	}
	return nil
}
