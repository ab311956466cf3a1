// services/threshold.go
package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// ThresholdPolicy computes the adaptive discount threshold. Only the tier
// bases and the segment ordering are fixed; the other weights are tunable.
type ThresholdPolicy struct {
	TierBase          map[int]float64
	SegmentAdjust     map[models.Segment]float64
	VarianceWeight    float64
	VarianceCap       float64
	MinHistoryPoints  int
	SeasonalBoost     float64
	ExperimentalBoost float64
	HighSeasonMonths  []time.Month
	Min               float64
	Max               float64
}

// DefaultThresholdPolicy is 25/20/15 by tier, with free users needing five
// points more than premium and enterprise five points less.
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		TierBase: map[int]float64{1: 25, 2: 20, 3: 15},
		SegmentAdjust: map[models.Segment]float64{
			models.SegmentFree:       5,
			models.SegmentPremium:    0,
			models.SegmentEnterprise: -5,
		},
		VarianceWeight:    0.5,
		VarianceCap:       10,
		MinHistoryPoints:  5,
		SeasonalBoost:     3,
		ExperimentalBoost: 2,
		HighSeasonMonths:  []time.Month{time.June, time.July, time.August, time.December},
		Min:               5,
		Max:               60,
	}
}

func (p ThresholdPolicy) base(tier int) float64 {
	if b, ok := p.TierBase[tier]; ok {
		return b
	}
	return 20
}

func (p ThresholdPolicy) inHighSeason(now time.Time) bool {
	m := now.UTC().Month()
	for _, hs := range p.HighSeasonMonths {
		if hs == m {
			return true
		}
	}
	return false
}

// Threshold returns the minimum discount percentage for route and segment,
// with a description of how it was built. history holds recent prices for
// the route; it only counts once it has MinHistoryPoints entries.
func (p ThresholdPolicy) Threshold(route models.StrategicRoute, segment models.Segment, history []float64, now time.Time) (float64, string) {
	t := p.base(route.Tier)
	parts := []string{fmt.Sprintf("tier %d base %.1f%%", route.Tier, t)}

	if adj := p.SegmentAdjust[segment]; adj != 0 {
		t += adj
		parts = append(parts, fmt.Sprintf("segment %s %+.1f", segment, adj))
	}

	if len(history) >= p.MinHistoryPoints && p.MinHistoryPoints > 0 {
		cv := utils.CoefficientOfVariation(history) * 100
		adj := math.Min(cv*p.VarianceWeight, p.VarianceCap)
		if adj > 0 {
			t += adj
			parts = append(parts, fmt.Sprintf("history cv %.1f%% %+.1f", cv, adj))
		}
	}

	if route.SeasonalBoost && p.inHighSeason(now) && p.SeasonalBoost != 0 {
		t += p.SeasonalBoost
		parts = append(parts, fmt.Sprintf("high season %+.1f", p.SeasonalBoost))
	}
	if route.Experimental && p.ExperimentalBoost != 0 {
		t += p.ExperimentalBoost
		parts = append(parts, fmt.Sprintf("experimental %+.1f", p.ExperimentalBoost))
	}

	clamped := utils.Clamp(t, p.Min, p.Max)
	if clamped != t {
		parts = append(parts, fmt.Sprintf("clamped to [%.0f, %.0f]", p.Min, p.Max))
	}
	return utils.Round2(clamped), strings.Join(parts, "; ")
}

// Evaluate decides whether discount qualifies and how confident that call is.
// Confidence grows with the margin over the threshold, the number of prices
// the baseline came from and the availability of route history.
func (p ThresholdPolicy) Evaluate(route models.StrategicRoute, segment models.Segment, discount float64, sampleSize int, history []float64, now time.Time) models.ThresholdDecision {
	threshold, reasoning := p.Threshold(route, segment, history, now)
	confidence := 50 + (discount-threshold)*2 + float64(min(sampleSize, 10))*2
	if len(history) >= p.MinHistoryPoints && p.MinHistoryPoints > 0 {
		confidence += 10
	}
	valid := discount >= threshold
	verdict := "below"
	if valid {
		verdict = "clears"
	}
	return models.ThresholdDecision{
		Threshold:  threshold,
		IsValid:    valid,
		Confidence: utils.Round2(utils.Clamp(confidence, 0, 100)),
		Reasoning:  fmt.Sprintf("discount %.1f%% %s threshold %.1f%% (%s)", discount, verdict, threshold, reasoning),
	}
}

// SensitiveSegment is the target segment of route with the lowest threshold.
// Users in less sensitive segments are filtered later by their own floors.
func (p ThresholdPolicy) SensitiveSegment(route models.StrategicRoute) models.Segment {
	best := models.SegmentFree
	bestAdj := math.Inf(1)
	for _, seg := range route.TargetUserSegments {
		if adj := p.SegmentAdjust[seg]; adj < bestAdj {
			best, bestAdj = seg, adj
		}
	}
	return best
}

// ThresholdPolicyFromConfig overlays configured tier bases and history
// settings on the defaults. High-season months are shared with the scanner.
func ThresholdPolicyFromConfig(cfg *config.Config) ThresholdPolicy {
	p := DefaultThresholdPolicy()
	for tier, base := range cfg.Detection.TierThresholds {
		p.TierBase[tier] = base
	}
	p.MinHistoryPoints = cfg.Detection.MinHistoryPoints
	if len(cfg.Scanner.Seasonal.HighSeasonMonths) > 0 {
		p.HighSeasonMonths = p.HighSeasonMonths[:0]
		for _, m := range cfg.Scanner.Seasonal.HighSeasonMonths {
			p.HighSeasonMonths = append(p.HighSeasonMonths, time.Month(m))
		}
	}
	return p
}
