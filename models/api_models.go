// models/api_models.go
package models

// ForceScanRequest is the JSON body for POST /api/admin/scans/force.
type ForceScanRequest struct {
	Tier      *int `json:"tier" binding:"omitempty,min=1,max=3"` // nil scans every tier
	MaxRoutes int  `json:"max_routes" binding:"omitempty,min=0"`
	Wait      bool `json:"wait"`
}

// ForceScanResponse reports a forced scan. Reports is empty when the scan runs in the background.
type ForceScanResponse struct {
	Accepted bool         `json:"accepted"`
	Reports  []ScanReport `json:"reports,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// StatsResponse is the body of GET /api/admin/scans/stats.
type StatsResponse struct {
	Stats      ScanRunStats   `json:"stats"`
	Budget     BudgetCounters `json:"budget"`
	RecentRuns []ScanReport   `json:"recent_runs"`
}

// ErrorResponse is the body returned on handler failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
