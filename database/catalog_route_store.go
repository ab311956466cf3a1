// database/catalog_route_store.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/maous26/GG2-sub000/models"
)

// SaveCatalogRoutes replaces the stored catalog with routes in one transaction.
func (s *Store) SaveCatalogRoutes(ctx context.Context, routes []models.StrategicRoute, sourceFile string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(routes) == 0 {
		s.logger.Info("no catalog routes provided to save")
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for catalog routes: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_routes"); err != nil {
		return fmt.Errorf("failed to clear catalog routes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO catalog_routes (
			origin, destination, tier, scan_frequency_hours, estimated_calls_per_scan,
			priority, expected_discount_range, target_user_segments, geographic_region,
			seasonal_boost, experimental, source_file, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare catalog route insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range routes {
		discount, _ := r.ExpectedDiscountRange.MarshalText()
		segments, _ := r.TargetUserSegments.MarshalText()
		if _, err := stmt.ExecContext(ctx,
			r.Origin, r.Destination, r.Tier, r.ScanFrequencyHours, r.EstimatedCallsPerScan,
			r.Priority, string(discount), string(segments), r.GeographicRegion,
			r.SeasonalBoost, r.Experimental, sourceFile, now,
		); err != nil {
			return fmt.Errorf("failed to insert catalog route %s: %w", r.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog routes: %w", err)
	}
	s.logger.Info("catalog routes saved", "routes", len(routes), "source", sourceFile)
	return nil
}

// CatalogRoutes returns the last stored catalog.
func (s *Store) CatalogRoutes(ctx context.Context) ([]models.StrategicRoute, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT origin, destination, tier, scan_frequency_hours,
			estimated_calls_per_scan, priority, expected_discount_range, target_user_segments,
			geographic_region, seasonal_boost, experimental
		FROM catalog_routes ORDER BY tier, priority DESC, origin, destination`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog routes: %w", err)
	}
	defer rows.Close()

	var routes []models.StrategicRoute
	for rows.Next() {
		var r models.StrategicRoute
		var discount, segments string
		if err := rows.Scan(&r.Origin, &r.Destination, &r.Tier, &r.ScanFrequencyHours,
			&r.EstimatedCallsPerScan, &r.Priority, &discount, &segments,
			&r.GeographicRegion, &r.SeasonalBoost, &r.Experimental); err != nil {
			return nil, fmt.Errorf("failed to scan catalog route: %w", err)
		}
		if err := r.ExpectedDiscountRange.UnmarshalText([]byte(discount)); err != nil {
			return nil, fmt.Errorf("catalog route %s: %w", r.Key(), err)
		}
		if err := r.TargetUserSegments.UnmarshalText([]byte(segments)); err != nil {
			return nil, fmt.Errorf("catalog route %s: %w", r.Key(), err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}
