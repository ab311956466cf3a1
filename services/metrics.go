// services/metrics.go
package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdeals_scans_total",
		Help: "Tier scans run, by tier and trigger (scheduled|forced).",
	}, []string{"tier", "trigger"})

	scansSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdeals_scans_skipped_total",
		Help: "Triggers dropped because a scan held the exclusion guard.",
	}, []string{"tier"})

	scanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flightdeals_scan_duration_seconds",
		Help:    "Wall time of one tier scan.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"tier"})

	routesScannedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdeals_routes_scanned_total",
		Help: "Routes processed, by result (ok|failed).",
	}, []string{"result"})

	dealsFoundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdeals_deals_found_total",
		Help: "Deals detected, by tier.",
	}, []string{"tier"})

	alertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdeals_alerts_total",
		Help: "Alerts recorded, by status.",
	}, []string{"status"})

	upstreamCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdeals_upstream_calls_total",
		Help: "Upstream provider attempts, by provider and outcome.",
	}, []string{"provider", "outcome"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdeals_cache_lookups_total",
		Help: "Result cache lookups, by result (hit|miss|error).",
	}, []string{"result"})

	budgetReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flightdeals_budget_reservations_total",
		Help: "Budget reservation attempts, by result (granted|denied|error|released).",
	}, []string{"result"})

	budgetReservedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flightdeals_budget_reserved_calls",
		Help: "Calls reserved in the current period (month|day).",
	}, []string{"period"})
)
