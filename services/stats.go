// services/stats.go
package services

import (
	"sync"
	"time"

	"github.com/maous26/GG2-sub000/models"
)

// ScanStats accumulates run statistics for the life of the process.
type ScanStats struct {
	mu        sync.Mutex
	stats     models.ScanRunStats
	routeLast map[string]time.Time
}

func NewScanStats() *ScanStats {
	return &ScanStats{
		stats:     models.ScanRunStats{LastScanTimePerTier: map[int]time.Time{}},
		routeLast: map[string]time.Time{},
	}
}

func (s *ScanStats) recordRun(r models.ScanReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalScans++
	s.stats.DealsFound += int64(r.DealsFound)
	s.stats.AlertsSent += int64(r.AlertsSent)
	s.stats.APICallsUsed += int64(r.APICalls)
	s.stats.LastScanTimePerTier[r.Tier] = r.FinishedAt
}

func (s *ScanStats) markRoute(key string, at time.Time) {
	s.mu.Lock()
	s.routeLast[key] = at
	s.mu.Unlock()
}

// LastRouteScan is when route key was last scanned.
func (s *ScanStats) LastRouteScan(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.routeLast[key]
	return t, ok
}

// Snapshot returns a copy safe to hand out.
func (s *ScanStats) Snapshot() models.ScanRunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.LastScanTimePerTier = make(map[int]time.Time, len(s.stats.LastScanTimePerTier))
	for k, v := range s.stats.LastScanTimePerTier {
		out.LastScanTimePerTier[k] = v
	}
	return out
}
