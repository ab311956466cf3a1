// models/route.go
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is a subscription segment of a user.
type Segment string

const (
	SegmentFree       Segment = "free"
	SegmentPremium    Segment = "premium"
	SegmentEnterprise Segment = "enterprise"
)

// AllSegments lists segments from least to most sensitive.
var AllSegments = []Segment{SegmentFree, SegmentPremium, SegmentEnterprise}

// ParseSegment normalizes a segment name.
func ParseSegment(s string) (Segment, error) {
	switch Segment(strings.ToLower(strings.TrimSpace(s))) {
	case SegmentFree:
		return SegmentFree, nil
	case SegmentPremium:
		return SegmentPremium, nil
	case SegmentEnterprise:
		return SegmentEnterprise, nil
	}
	return "", fmt.Errorf("unknown segment %q", s)
}

// SegmentSet is the set of segments a route targets.
// In CSV it is written as "free|premium|enterprise".
type SegmentSet []Segment

// Contains reports whether seg is in the set.
func (s SegmentSet) Contains(seg Segment) bool {
	for _, v := range s {
		if v == seg {
			return true
		}
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler for csvutil.
func (s *SegmentSet) UnmarshalText(text []byte) error {
	var out SegmentSet
	for _, part := range strings.Split(string(text), "|") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		seg, err := ParseSegment(part)
		if err != nil {
			return err
		}
		if !out.Contains(seg) {
			out = append(out, seg)
		}
	}
	*s = out
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s SegmentSet) MarshalText() ([]byte, error) {
	parts := make([]string, len(s))
	for i, seg := range s {
		parts[i] = string(seg)
	}
	return []byte(strings.Join(parts, "|")), nil
}

// DiscountRange is the discount band (percent) a route is expected to show.
// In CSV it is written as "30-50".
type DiscountRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// UnmarshalText implements encoding.TextUnmarshaler for csvutil.
func (r *DiscountRange) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*r = DiscountRange{}
		return nil
	}
	lo, hi, ok := strings.Cut(raw, "-")
	if !ok {
		return fmt.Errorf("discount range %q: expected MIN-MAX", raw)
	}
	minV, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return fmt.Errorf("discount range %q: %w", raw, err)
	}
	maxV, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return fmt.Errorf("discount range %q: %w", raw, err)
	}
	if minV > maxV {
		return fmt.Errorf("discount range %q: min greater than max", raw)
	}
	*r = DiscountRange{Min: minV, Max: maxV}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r DiscountRange) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%g-%g", r.Min, r.Max)), nil
}

// StrategicRoute is one immutable entry of the route catalog.
// CSV tags match the headers of strategic_routes.csv.
type StrategicRoute struct {
	Origin                string        `csv:"origin" json:"origin" validate:"required,len=3,alpha"`
	Destination           string        `csv:"destination" json:"destination" validate:"required,len=3,alpha,nefield=Origin"`
	Tier                  int           `csv:"tier" json:"tier" validate:"required,min=1,max=3"`
	ScanFrequencyHours    float64       `csv:"scan_frequency_hours" json:"scanFrequencyHours" validate:"required,gt=0"`
	EstimatedCallsPerScan int           `csv:"estimated_calls_per_scan" json:"estimatedCallsPerScan" validate:"min=0"`
	Priority              int           `csv:"priority" json:"priority" validate:"min=0"`
	ExpectedDiscountRange DiscountRange `csv:"expected_discount_range" json:"expectedDiscountRange"`
	TargetUserSegments    SegmentSet    `csv:"target_user_segments" json:"targetUserSegments" validate:"required,min=1"`
	GeographicRegion      string        `csv:"geographic_region" json:"geographicRegion"`
	SeasonalBoost         bool          `csv:"seasonal_boost" json:"seasonalBoost"`
	Experimental          bool          `csv:"experimental" json:"experimental"`
}

// Key identifies the route in maps and logs, e.g. "CDG-JFK".
func (r StrategicRoute) Key() string {
	return r.Origin + "-" + r.Destination
}

// CallCost is the number of budget units a single search for this route reserves.
func (r StrategicRoute) CallCost() int {
	if r.EstimatedCallsPerScan <= 0 {
		return 1
	}
	return r.EstimatedCallsPerScan
}
