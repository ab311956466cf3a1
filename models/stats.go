// models/stats.go
package models

import "time"

// ScanRunStats is the process-wide accumulation of scan activity.
type ScanRunStats struct {
	TotalScans          int64             `json:"totalScans"`
	DealsFound          int64             `json:"dealsFound"`
	AlertsSent          int64             `json:"alertsSent"`
	APICallsUsed        int64             `json:"apiCallsUsed"`
	LastScanTimePerTier map[int]time.Time `json:"lastScanTimePerTier"`
}

// ScanReport summarizes a single tier run.
type ScanReport struct {
	ID            string    `db:"id" json:"id"`
	Tier          int       `db:"tier" json:"tier"`
	Forced        bool      `db:"forced" json:"forced"`
	Skipped       bool      `db:"-" json:"skipped"`
	RoutesScanned int       `db:"routes_scanned" json:"routesScanned"`
	RoutesFailed  int       `db:"routes_failed" json:"routesFailed"`
	DealsFound    int       `db:"deals_found" json:"dealsFound"`
	AlertsSent    int       `db:"alerts_sent" json:"alertsSent"`
	APICalls      int       `db:"api_calls" json:"apiCalls"`
	Error         string    `db:"error" json:"error,omitempty"`
	StartedAt     time.Time `db:"started_at" json:"startedAt"`
	FinishedAt    time.Time `db:"finished_at" json:"finishedAt"`
}
