// services/frequency.go
package services

import (
	"strings"
	"time"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/models"
)

// CalendarOverride shortens tier-1 scan frequency inside a weekly UTC window.
type CalendarOverride struct {
	Enabled           bool
	Weekday           time.Weekday
	StartHour         int // inclusive
	EndHour           int // exclusive
	MaxFrequencyHours float64
}

func (o CalendarOverride) active(now time.Time) bool {
	if !o.Enabled || o.MaxFrequencyHours <= 0 {
		return false
	}
	now = now.UTC()
	return now.Weekday() == o.Weekday && now.Hour() >= o.StartHour && now.Hour() < o.EndHour
}

// nextStart is the first time after now at which the window opens.
func (o CalendarOverride) nextStart(now time.Time) (time.Time, bool) {
	if !o.Enabled || o.MaxFrequencyHours <= 0 || o.StartHour >= o.EndHour {
		return time.Time{}, false
	}
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	ahead := (int(o.Weekday) - int(now.Weekday()) + 7) % 7
	start := day.AddDate(0, 0, ahead).Add(time.Duration(o.StartHour) * time.Hour)
	if !start.After(now) {
		start = start.AddDate(0, 0, 7)
	}
	return start, true
}

// FrequencyPolicy computes the effective scan frequency of a route at a given time.
type FrequencyPolicy struct {
	HighSeasonMonths  []time.Month
	SeasonalFactor    float64
	MinFrequencyHours float64
	Calendar          CalendarOverride
}

// NewFrequencyPolicy maps the scanner configuration onto a policy.
func NewFrequencyPolicy(cfg config.ScannerConfig) FrequencyPolicy {
	p := FrequencyPolicy{
		SeasonalFactor:    cfg.Seasonal.FrequencyFactor,
		MinFrequencyHours: cfg.Seasonal.MinFrequencyHours,
		Calendar: CalendarOverride{
			Enabled:           cfg.CalendarOverride.Enabled,
			Weekday:           parseWeekday(cfg.CalendarOverride.Weekday),
			StartHour:         cfg.CalendarOverride.StartHour,
			EndHour:           cfg.CalendarOverride.EndHour,
			MaxFrequencyHours: cfg.CalendarOverride.MaxFrequencyHours,
		},
	}
	for _, m := range cfg.Seasonal.HighSeasonMonths {
		p.HighSeasonMonths = append(p.HighSeasonMonths, time.Month(m))
	}
	return p
}

func parseWeekday(s string) time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) || strings.EqualFold(d.String()[:3], strings.TrimSpace(s)) {
			return d
		}
	}
	return time.Tuesday
}

// InHighSeason reports whether now falls in a high-season month.
func (p FrequencyPolicy) InHighSeason(now time.Time) bool {
	m := now.UTC().Month()
	for _, hs := range p.HighSeasonMonths {
		if hs == m {
			return true
		}
	}
	return false
}

// EffectiveFrequency applies the seasonal rule first, then clamps by the
// calendar override for tier-1 routes. It has no side effects.
func (p FrequencyPolicy) EffectiveFrequency(route models.StrategicRoute, now time.Time) float64 {
	freq := route.ScanFrequencyHours
	if route.SeasonalBoost && p.SeasonalFactor > 0 && p.SeasonalFactor < 1 && p.InHighSeason(now) {
		freq *= p.SeasonalFactor
		if p.MinFrequencyHours > 0 && freq < p.MinFrequencyHours {
			freq = min(p.MinFrequencyHours, route.ScanFrequencyHours)
		}
	}
	if route.Tier == 1 && p.Calendar.active(now) && freq > p.Calendar.MaxFrequencyHours {
		freq = p.Calendar.MaxFrequencyHours
	}
	return freq
}

// NextChange returns the next time after now at which a rule that can shorten
// a route's frequency starts to apply: the calendar window opening or the
// first month of high season.
func (p FrequencyPolicy) NextChange(now time.Time) (time.Time, bool) {
	next, ok := p.Calendar.nextStart(now)
	if p.SeasonalFactor > 0 && p.SeasonalFactor < 1 && !p.InHighSeason(now) {
		u := now.UTC()
		for i := 1; i <= 12; i++ {
			m := time.Date(u.Year(), u.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
			if !p.InHighSeason(m) {
				continue
			}
			if !ok || m.Before(next) {
				next, ok = m, true
			}
			break
		}
	}
	return next, ok
}

// EffectiveInterval is EffectiveFrequency as a duration.
func (p FrequencyPolicy) EffectiveInterval(route models.StrategicRoute, now time.Time) time.Duration {
	return time.Duration(p.EffectiveFrequency(route, now) * float64(time.Hour))
}
