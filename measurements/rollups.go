package measurements

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"golang.org/x/sync/errgroup"

	"projectmeasure/collections"
	"projectmeasure/services"
)

// GlobalScope is the scope of a financial report that spans every project.
const GlobalScope = "global"

// ReportScope is the stored scope key for a project filter: "global" when
// empty, otherwise the sorted, comma-joined project ids.
func ReportScope(projectIDs []string) string {
	ids := make([]string, 0, len(projectIDs))
	seen := make(map[string]struct{}, len(projectIDs))
	for _, id := range projectIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return GlobalScope
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// rollupRows collects the active items of active sessions that reference
// entryID, optionally limited to a set of projects.
func rollupRows(app core.App, entryID string, projects map[string]struct{}) ([]services.RollupRow, error) {
	items, err := app.FindRecordsByFilter(
		collections.MeasurementItems,
		"price_list_entry = {:entryId} && is_active = true",
		"created",
		0, 0,
		map[string]any{"entryId": entryID},
	)
	if err != nil {
		return nil, fmt.Errorf("find items of entry %s: %w", entryID, err)
	}

	sessions := make(map[string]*core.Record)
	rows := make([]services.RollupRow, 0, len(items))
	for _, item := range items {
		sessionID := item.GetString("session")
		session, ok := sessions[sessionID]
		if !ok {
			session, err = app.FindRecordById(collections.MeasurementSessions, sessionID)
			if err != nil {
				return nil, fmt.Errorf("find session %s: %w", sessionID, err)
			}
			sessions[sessionID] = session
		}
		if !session.GetBool("is_active") {
			continue
		}
		projectID := session.GetString("project")
		if len(projects) > 0 {
			if _, ok := projects[projectID]; !ok {
				continue
			}
		}

		usedAt := session.GetDateTime("session_date").Time()
		if usedAt.IsZero() {
			usedAt = item.GetDateTime("created").Time()
		}
		rows = append(rows, services.RollupRow{
			ItemID:    item.Id,
			SessionID: sessionID,
			ProjectID: projectID,
			Quantity:  getDecimal(item, "quantity"),
			Amount:    getDecimal(item, "item_total"),
			UsedAt:    usedAt,
		})
	}
	return rows, nil
}

func setRollup(record *core.Record, r services.Rollup) {
	setDecimal(record, "total_quantity", r.TotalQuantity)
	setDecimal(record, "total_amount", r.TotalAmount)
	record.Set("sessions_count", r.SessionsCount)
	record.Set("rows_count", r.RowsCount)
	if r.FirstUsed.IsZero() {
		record.Set("first_used", "")
		record.Set("last_used", "")
	} else {
		record.Set("first_used", r.FirstUsed)
		record.Set("last_used", r.LastUsed)
	}
	record.Set("last_rebuilt", types.NowDateTime())
}

// upsert returns the row matching filter or a new record of collection.
func upsert(app core.App, collection, filter string, params map[string]any) (*core.Record, error) {
	existing, err := app.FindRecordsByFilter(collection, filter, "", 1, 0, params)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	col, err := app.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, fmt.Errorf("find %s collection: %w", collection, err)
	}
	return core.NewRecord(col), nil
}

// RebuildDetailedMeasurement rescans one entry's usage within a project and
// stores the result.
func (s *Service) RebuildDetailedMeasurement(ctx context.Context, projectID, entryID string) (*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := findRecord(s.app, collections.Projects, projectID); err != nil {
		return nil, err
	}
	if _, err := findRecord(s.app, collections.PriceListEntries, entryID); err != nil {
		return nil, err
	}

	var record *core.Record
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rows, err := rollupRows(txApp, entryID, map[string]struct{}{projectID: {}})
		if err != nil {
			return err
		}
		record, err = upsert(txApp, collections.DetailedMeasurements,
			"project = {:projectId} && price_list_entry = {:entryId}",
			map[string]any{"projectId": projectID, "entryId": entryID})
		if err != nil {
			return err
		}
		record.Set("project", projectID)
		record.Set("price_list_entry", entryID)
		setRollup(record, services.ComputeRollup(rows))
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("save detailed measurement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RebuildFinancialReport rescans one entry's usage across projectIDs, or
// across every project when projectIDs is empty.
func (s *Service) RebuildFinancialReport(ctx context.Context, entryID string, projectIDs []string) (*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := findRecord(s.app, collections.PriceListEntries, entryID); err != nil {
		return nil, err
	}

	scope := ReportScope(projectIDs)
	var filter map[string]struct{}
	if scope != GlobalScope {
		filter = make(map[string]struct{})
		for _, id := range strings.Split(scope, ",") {
			filter[id] = struct{}{}
		}
	}

	var record *core.Record
	err := s.app.RunInTransaction(func(txApp core.App) error {
		rows, err := rollupRows(txApp, entryID, filter)
		if err != nil {
			return err
		}
		rollup := services.ComputeRollup(rows)

		record, err = upsert(txApp, collections.DetailedFinancialReports,
			"price_list_entry = {:entryId} && scope = {:scope}",
			map[string]any{"entryId": entryID, "scope": scope})
		if err != nil {
			return err
		}
		record.Set("price_list_entry", entryID)
		record.Set("scope", scope)
		setRollup(record, rollup)
		record.Set("projects_count", rollup.ProjectsCount)
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("save financial report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RebuildStats counts the rollups written by RebuildAllRollups.
type RebuildStats struct {
	Entries              int
	DetailedMeasurements int
	FinancialReports     int
}

// RebuildAllRollups rebuilds the global report of every active entry and
// the per-project rollup of every project that uses it.
func (s *Service) RebuildAllRollups(ctx context.Context) (RebuildStats, error) {
	entries, err := s.app.FindRecordsByFilter(
		collections.PriceListEntries,
		"is_active = true",
		"row_number",
		0, 0,
		nil,
	)
	if err != nil {
		return RebuildStats{}, fmt.Errorf("find entries: %w", err)
	}

	var (
		mu    sync.Mutex
		stats = RebuildStats{Entries: len(entries)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.rollupConcurrency)
	for _, entry := range entries {
		entryID := entry.Id
		g.Go(func() error {
			if _, err := s.RebuildFinancialReport(gctx, entryID, nil); err != nil {
				return fmt.Errorf("entry %s: %w", entryID, err)
			}

			rows, err := rollupRows(s.app, entryID, nil)
			if err != nil {
				return err
			}
			projects := make(map[string]struct{})
			for _, row := range rows {
				projects[row.ProjectID] = struct{}{}
			}
			for projectID := range projects {
				if _, err := s.RebuildDetailedMeasurement(gctx, projectID, entryID); err != nil {
					return fmt.Errorf("entry %s project %s: %w", entryID, projectID, err)
				}
			}

			mu.Lock()
			stats.FinancialReports++
			stats.DetailedMeasurements += len(projects)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	s.log.WithFields(map[string]any{
		"entries":  stats.Entries,
		"detailed": stats.DetailedMeasurements,
		"reports":  stats.FinancialReports,
	}).Info("rollups rebuilt")
	return stats, nil
}

// RollupView is a stored rollup in decimal form.
type RollupView struct {
	EntryID       string `json:"price_list_entry"`
	Scope         string `json:"scope"`
	TotalQuantity string `json:"total_quantity"`
	TotalAmount   string `json:"total_amount"`
	SessionsCount int    `json:"sessions_count"`
	RowsCount     int    `json:"rows_count"`
	ProjectsCount int    `json:"projects_count"`
	FirstUsed     string `json:"first_used,omitempty"`
	LastUsed      string `json:"last_used,omitempty"`
}

// EntryReport rebuilds and returns an entry's financial report.
func (s *Service) EntryReport(ctx context.Context, entryID string, projectIDs []string) (RollupView, error) {
	r, err := s.RebuildFinancialReport(ctx, entryID, projectIDs)
	if err != nil {
		return RollupView{}, err
	}
	return RollupView{
		EntryID:       entryID,
		Scope:         r.GetString("scope"),
		TotalQuantity: getDecimal(r, "total_quantity").String(),
		TotalAmount:   getDecimal(r, "total_amount").String(),
		SessionsCount: r.GetInt("sessions_count"),
		RowsCount:     r.GetInt("rows_count"),
		ProjectsCount: r.GetInt("projects_count"),
		FirstUsed:     r.GetString("first_used"),
		LastUsed:      r.GetString("last_used"),
	}, nil
}
