// models/meta.go
package models

import "time"

// CatalogSourceVersion tracks each load of the strategic route catalog.
type CatalogSourceVersion struct {
	SourceName     string    `db:"source_name" json:"source_name"` // e.g., "strategic_routes"
	SourceLocation string    `db:"source_location" json:"source_location"`
	RouteCount     int       `db:"route_count" json:"route_count"`
	SkippedCount   int       `db:"skipped_count" json:"skipped_count"`
	DataHash       string    `db:"data_hash" json:"data_hash,omitempty"` // SHA-256 of the file content
	LoadedAt       time.Time `db:"loaded_at" json:"loaded_at"`
}
