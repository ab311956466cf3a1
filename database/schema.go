// database/schema.go
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Timestamps are stored as unix seconds and calendar dates as YYYY-MM-DD
// so the same statements run on MySQL and SQLite.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS deals (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		origin VARCHAR(3) NOT NULL,
		destination VARCHAR(3) NOT NULL,
		tier INT NOT NULL,
		airline VARCHAR(64) NOT NULL DEFAULT '',
		cabin VARCHAR(32) NOT NULL DEFAULT '',
		stops INT NOT NULL DEFAULT 0,
		currency VARCHAR(3) NOT NULL DEFAULT '',
		current_price DOUBLE NOT NULL,
		original_price_estimate DOUBLE NOT NULL,
		discount_percentage DOUBLE NOT NULL,
		validation_score DOUBLE NOT NULL,
		threshold_pct DOUBLE NOT NULL,
		reasoning TEXT,
		outlier BOOLEAN NOT NULL DEFAULT FALSE,
		departure_date VARCHAR(10) NOT NULL,
		return_date VARCHAR(10) NULL,
		deep_link TEXT,
		detected_at BIGINT NOT NULL,
		valid_until BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		deal_id VARCHAR(36) NOT NULL,
		status VARCHAR(32) NOT NULL,
		error TEXT,
		recipient_count INT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alert_recipients (
		alert_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		PRIMARY KEY (alert_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		origin VARCHAR(3) NOT NULL,
		destination VARCHAR(3) NOT NULL,
		departure_date VARCHAR(10) NOT NULL,
		price DOUBLE NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT '',
		airline VARCHAR(64) NOT NULL DEFAULT '',
		observed_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		segment VARCHAR(16) NOT NULL,
		departure_airports TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_routes (
		origin VARCHAR(3) NOT NULL,
		destination VARCHAR(3) NOT NULL,
		tier INT NOT NULL,
		scan_frequency_hours DOUBLE NOT NULL,
		estimated_calls_per_scan INT NOT NULL DEFAULT 1,
		priority INT NOT NULL DEFAULT 0,
		expected_discount_range VARCHAR(32) NOT NULL DEFAULT '',
		target_user_segments VARCHAR(64) NOT NULL,
		geographic_region VARCHAR(64) NOT NULL DEFAULT '',
		seasonal_boost BOOLEAN NOT NULL DEFAULT FALSE,
		experimental BOOLEAN NOT NULL DEFAULT FALSE,
		source_file VARCHAR(255) NOT NULL DEFAULT '',
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (origin, destination)
	)`,
	`CREATE TABLE IF NOT EXISTS scan_runs (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		tier INT NOT NULL,
		forced BOOLEAN NOT NULL DEFAULT FALSE,
		routes_scanned INT NOT NULL DEFAULT 0,
		routes_failed INT NOT NULL DEFAULT 0,
		deals_found INT NOT NULL DEFAULT 0,
		alerts_sent INT NOT NULL DEFAULT 0,
		api_calls INT NOT NULL DEFAULT 0,
		error TEXT,
		started_at BIGINT NOT NULL,
		finished_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_source_versions (
		source_name VARCHAR(64) NOT NULL PRIMARY KEY,
		source_location TEXT,
		route_count INT NOT NULL DEFAULT 0,
		skipped_count INT NOT NULL DEFAULT 0,
		data_hash VARCHAR(64) NOT NULL DEFAULT '',
		loaded_at BIGINT NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX idx_deals_route ON deals (origin, destination, detected_at)`,
	`CREATE INDEX idx_alerts_deal ON alerts (deal_id)`,
	`CREATE INDEX idx_price_history_route ON price_history (origin, destination, observed_at)`,
	`CREATE INDEX idx_users_segment ON users (segment, active)`,
	`CREATE INDEX idx_scan_runs_started ON scan_runs (started_at)`,
}

// mysqlErrDupKeyName is "Duplicate key name" (ER_DUP_KEYNAME).
const mysqlErrDupKeyName = 1061

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, stmt := range tables {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range indexes {
		if s.driver == DriverSQLite {
			stmt = strings.Replace(stmt, "CREATE INDEX", "CREATE INDEX IF NOT EXISTS", 1)
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == mysqlErrDupKeyName {
				continue
			}
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	s.logger.Debug("database schema ready", "tables", len(tables))
	return nil
}
