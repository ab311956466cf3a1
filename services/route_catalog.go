// services/route_catalog.go
package services

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// TierGroup is a distinct (tier, base frequency) pair of the catalog.
// The scheduler runs one timer per group.
type TierGroup struct {
	Tier           int
	FrequencyHours float64
}

// RouteCatalog is the immutable set of strategic routes.
type RouteCatalog struct {
	routes []models.StrategicRoute
	byKey  map[string]models.StrategicRoute
}

// NewRouteCatalog validates and indexes routes. Invalid entries are logged and
// dropped; duplicates keep the first occurrence. The catalog is rejected when a
// tier-1 route is not scanned strictly more often than every tier-2/3 route.
func NewRouteCatalog(routes []models.StrategicRoute, logger *slog.Logger) (*RouteCatalog, error) {
	logger = utils.OrNop(logger)
	validate := validator.New()

	c := &RouteCatalog{byKey: make(map[string]models.StrategicRoute, len(routes))}
	for _, r := range routes {
		r.Origin = utils.NormalizeAirportCode(r.Origin)
		r.Destination = utils.NormalizeAirportCode(r.Destination)
		if err := validate.Struct(r); err != nil {
			logger.Warn("skipping invalid catalog route", "route", r.Key(), "error", err)
			continue
		}
		if _, dup := c.byKey[r.Key()]; dup {
			logger.Warn("skipping duplicate catalog route", "route", r.Key())
			continue
		}
		c.byKey[r.Key()] = r
		c.routes = append(c.routes, r)
	}

	if err := checkTierFrequencies(c.routes); err != nil {
		return nil, err
	}
	return c, nil
}

func checkTierFrequencies(routes []models.StrategicRoute) error {
	maxTier1 := 0.0
	minOther := 0.0
	var slowest, fastest string
	for _, r := range routes {
		if r.Tier == 1 {
			if r.ScanFrequencyHours > maxTier1 {
				maxTier1, slowest = r.ScanFrequencyHours, r.Key()
			}
			continue
		}
		if minOther == 0 || r.ScanFrequencyHours < minOther {
			minOther, fastest = r.ScanFrequencyHours, r.Key()
		}
	}
	if maxTier1 > 0 && minOther > 0 && maxTier1 >= minOther {
		return fmt.Errorf("tier 1 route %s scans every %gh, not more often than %s (every %gh)",
			slowest, maxTier1, fastest, minOther)
	}
	return nil
}

// Routes returns every route in catalog order.
func (c *RouteCatalog) Routes() []models.StrategicRoute {
	out := make([]models.StrategicRoute, len(c.routes))
	copy(out, c.routes)
	return out
}

// Len is the number of routes.
func (c *RouteCatalog) Len() int { return len(c.routes) }

// Route looks up a route by its "ORIG-DEST" key.
func (c *RouteCatalog) Route(key string) (models.StrategicRoute, bool) {
	r, ok := c.byKey[strings.ToUpper(key)]
	return r, ok
}

// RoutesForTier returns the routes of tier, highest priority first, capped at
// maxRoutes when positive. Equal priorities keep catalog order.
func (c *RouteCatalog) RoutesForTier(tier, maxRoutes int) []models.StrategicRoute {
	var out []models.StrategicRoute
	for _, r := range c.routes {
		if r.Tier == tier {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if maxRoutes > 0 && len(out) > maxRoutes {
		out = out[:maxRoutes]
	}
	return out
}

// Tiers lists the tiers present, ascending.
func (c *RouteCatalog) Tiers() []int {
	seen := map[int]bool{}
	var tiers []int
	for _, r := range c.routes {
		if !seen[r.Tier] {
			seen[r.Tier] = true
			tiers = append(tiers, r.Tier)
		}
	}
	sort.Ints(tiers)
	return tiers
}

// Groups lists the distinct (tier, frequency) pairs, by tier then frequency.
func (c *RouteCatalog) Groups() []TierGroup {
	seen := map[TierGroup]bool{}
	var groups []TierGroup
	for _, r := range c.routes {
		g := TierGroup{Tier: r.Tier, FrequencyHours: r.ScanFrequencyHours}
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Tier != groups[j].Tier {
			return groups[i].Tier < groups[j].Tier
		}
		return groups[i].FrequencyHours < groups[j].FrequencyHours
	})
	return groups
}

// RoutesInGroup returns the routes of g, highest priority first.
func (c *RouteCatalog) RoutesInGroup(g TierGroup) []models.StrategicRoute {
	var out []models.StrategicRoute
	for _, r := range c.RoutesForTier(g.Tier, 0) {
		if r.ScanFrequencyHours == g.FrequencyHours {
			out = append(out, r)
		}
	}
	return out
}

// EstimatedMonthlyCalls is the call volume the catalog needs at base frequency
// over a 30-day month.
func (c *RouteCatalog) EstimatedMonthlyCalls() int64 {
	var total float64
	for _, r := range c.routes {
		total += (24 / r.ScanFrequencyHours) * 30 * float64(r.CallCost())
	}
	return int64(total)
}
