// database/datasource_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maous26/GG2-sub000/models"
)

// LogCatalogSourceVersion inserts or updates the record of the last catalog load
// for v.SourceName.
func (s *Store) LogCatalogSourceVersion(ctx context.Context, v models.CatalogSourceVersion) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO catalog_source_versions
		(source_name, source_location, route_count, skipped_count, data_hash, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`+
		s.upsertClause("source_name", "source_location", "route_count", "skipped_count", "data_hash", "loaded_at"),
		v.SourceName, v.SourceLocation, v.RouteCount, v.SkippedCount, v.DataHash, v.LoadedAt.Unix())
	if err != nil {
		s.logger.Error("failed to log catalog source version", "source", v.SourceName, "error", err)
		return fmt.Errorf("failed to log catalog source version for %s: %w", v.SourceName, err)
	}
	s.logger.Info("catalog source version logged", "source", v.SourceName, "routes", v.RouteCount, "skipped", v.SkippedCount)
	return nil
}

// GetCatalogSourceVersions retrieves every recorded catalog load.
func (s *Store) GetCatalogSourceVersions(ctx context.Context) ([]models.CatalogSourceVersion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT source_name, source_location, route_count, skipped_count, data_hash, loaded_at
		FROM catalog_source_versions ORDER BY source_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog_source_versions: %w", err)
	}
	defer rows.Close()

	var versions []models.CatalogSourceVersion
	for rows.Next() {
		var v models.CatalogSourceVersion
		var location sql.NullString
		var loadedAt int64
		if err := rows.Scan(&v.SourceName, &location, &v.RouteCount, &v.SkippedCount, &v.DataHash, &loadedAt); err != nil {
			s.logger.Warn("failed to scan catalog_source_version row", "error", err)
			continue
		}
		v.SourceLocation = location.String
		v.LoadedAt = fromUnix(loadedAt)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog_source_version rows: %w", err)
	}
	return versions, nil
}
