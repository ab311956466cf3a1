// services/user_matcher.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// UserDirectory is the external user store.
type UserDirectory interface {
	FindUsers(ctx context.Context, q models.UserQuery) ([]models.UserRef, error)
}

// UserMatcher resolves the recipients of a deal.
type UserMatcher struct {
	dir      UserDirectory
	floors   map[models.Segment]float64
	maxUsers int
	logger   *slog.Logger
}

// NewUserMatcher checks that floors keep free >= premium >= enterprise.
func NewUserMatcher(dir UserDirectory, floors map[string]float64, maxUsers int, logger *slog.Logger) (*UserMatcher, error) {
	parsed := map[models.Segment]float64{
		models.SegmentFree:       30,
		models.SegmentPremium:    20,
		models.SegmentEnterprise: 15,
	}
	for name, v := range floors {
		seg, err := models.ParseSegment(name)
		if err != nil {
			return nil, fmt.Errorf("segment floors: %w", err)
		}
		parsed[seg] = v
	}
	if parsed[models.SegmentFree] < parsed[models.SegmentPremium] || parsed[models.SegmentPremium] < parsed[models.SegmentEnterprise] {
		return nil, fmt.Errorf("segment floors must satisfy free >= premium >= enterprise, got %v", parsed)
	}
	if maxUsers <= 0 {
		maxUsers = 120
	}
	return &UserMatcher{dir: dir, floors: parsed, maxUsers: maxUsers, logger: utils.OrNop(logger).With("component", "matcher")}, nil
}

// Floor is the minimum discount a segment's users are alerted for.
func (m *UserMatcher) Floor(seg models.Segment) float64 { return m.floors[seg] }

// Match returns users who prefer the deal's origin (or have no preference),
// belong to one of the route's target segments, and whose segment floor the
// deal's discount reaches. At most maxUsers are returned.
func (m *UserMatcher) Match(ctx context.Context, deal models.Deal, route models.StrategicRoute) ([]models.UserRef, error) {
	var eligible []models.Segment
	for _, seg := range route.TargetUserSegments {
		if deal.DiscountPercentage >= m.floors[seg] {
			eligible = append(eligible, seg)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	origin := utils.NormalizeAirportCode(deal.Origin)
	candidates, err := m.dir.FindUsers(ctx, models.UserQuery{DepartureAirport: origin, Segments: eligible})
	if err != nil {
		return nil, fmt.Errorf("user directory query for %s: %w", route.Key(), err)
	}

	// the directory is external; the filters are re-applied here
	out := make([]models.UserRef, 0, min(len(candidates), m.maxUsers))
	seen := make(map[string]struct{}, len(candidates))
	for _, u := range candidates {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		if !route.TargetUserSegments.Contains(u.Segment) {
			continue
		}
		if deal.DiscountPercentage < m.floors[u.Segment] {
			continue
		}
		if !u.AcceptsAirport(origin) {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
		if len(out) >= m.maxUsers {
			m.logger.Info("recipient cap reached", "deal_id", deal.ID, "cap", m.maxUsers)
			break
		}
	}
	return out, nil
}
