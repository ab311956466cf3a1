// database/scan_run_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maous26/GG2-sub000/models"
)

// SaveScanRun persists the summary of one tier run.
func (s *Store) SaveScanRun(ctx context.Context, r models.ScanReport) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO scan_runs
		(id, tier, forced, routes_scanned, routes_failed, deals_found, alerts_sent, api_calls, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Tier, r.Forced, r.RoutesScanned, r.RoutesFailed, r.DealsFound, r.AlertsSent, r.APICalls,
		sql.NullString{String: r.Error, Valid: r.Error != ""}, r.StartedAt.Unix(), r.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save scan run %s: %w", r.ID, err)
	}
	return nil
}

// RecentScanRuns returns the latest runs, newest first.
func (s *Store) RecentScanRuns(ctx context.Context, limit int) ([]models.ScanReport, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, tier, forced, routes_scanned, routes_failed, deals_found,
		alerts_sent, api_calls, error, started_at, finished_at
		FROM scan_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ScanReport
	for rows.Next() {
		var r models.ScanReport
		var errText sql.NullString
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Tier, &r.Forced, &r.RoutesScanned, &r.RoutesFailed, &r.DealsFound,
			&r.AlertsSent, &r.APICalls, &errText, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan scan_run row: %w", err)
		}
		r.Error = errText.String
		r.StartedAt = fromUnix(started)
		r.FinishedAt = fromUnix(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan_run rows: %w", err)
	}
	return runs, nil
}
