// services/deal_detector.go
package services

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

// DetectorOptions configures a DealDetector.
type DetectorOptions struct {
	MaxDeals      int
	Validity      time.Duration
	ZScoreEnabled bool
	ZScoreCutoff  float64
}

// DealDetector flags itineraries priced well below the route's baseline.
// Detect is a pure function of its inputs apart from ids and the clock.
type DealDetector struct {
	policy ThresholdPolicy
	opts   DetectorOptions
	now    func() time.Time
	newID  func() string
}

func NewDealDetector(policy ThresholdPolicy, opts DetectorOptions) *DealDetector {
	if opts.MaxDeals <= 0 {
		opts.MaxDeals = 10
	}
	if opts.Validity <= 0 {
		opts.Validity = 24 * time.Hour
	}
	if opts.ZScoreCutoff >= 0 {
		opts.ZScoreCutoff = -2
	}
	return &DealDetector{policy: policy, opts: opts, now: time.Now, newID: uuid.NewString}
}

// WithClock replaces the clock used for detectedAt/validUntil.
func (d *DealDetector) WithClock(now func() time.Time) *DealDetector {
	d.now = now
	return d
}

// Discount is max(0, (baseline - price) / baseline * 100).
func Discount(price, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return math.Max(0, (baseline-price)/baseline*100)
}

// Baselines returns the median and mean of the positive prices.
func Baselines(its []models.PricedItinerary) (median, mean float64, prices []float64) {
	for _, it := range its {
		if it.Price > 0 {
			prices = append(prices, it.Price)
		}
	}
	return utils.Median(prices), utils.Mean(prices), prices
}

// BestDiscount takes the larger discount against the two baselines and the
// baseline that produced it.
func BestDiscount(price, median, mean float64) (discount, baseline float64) {
	dm, da := Discount(price, median), Discount(price, mean)
	if da > dm {
		return da, mean
	}
	return dm, median
}

// Detect returns the deals among its for route, best discount first, at most
// MaxDeals. history is the route's recent observed prices.
func (d *DealDetector) Detect(route models.StrategicRoute, its []models.PricedItinerary, history []float64) []models.Deal {
	median, mean, prices := Baselines(its)
	if len(prices) == 0 {
		return nil
	}
	now := d.now().UTC()
	segment := d.policy.SensitiveSegment(route)

	byIndex := map[int]int{}
	var deals []models.Deal
	for i, it := range its {
		if it.Price <= 0 {
			continue
		}
		discount, baseline := BestDiscount(it.Price, median, mean)
		decision := d.policy.Evaluate(route, segment, discount, len(prices), history, now)
		if !decision.IsValid {
			continue
		}
		byIndex[i] = len(deals)
		deals = append(deals, d.newDeal(route, it, baseline, discount, decision, now))
	}

	if d.opts.ZScoreEnabled {
		for _, i := range ZScoreOutliers(its, d.opts.ZScoreCutoff) {
			if pos, ok := byIndex[i]; ok {
				deals[pos].Outlier = true
				continue
			}
			it := its[i]
			discount := Discount(it.Price, median)
			decision := d.policy.Evaluate(route, segment, discount, len(prices), history, now)
			decision.Reasoning = "price z-score below cutoff; " + decision.Reasoning
			deal := d.newDeal(route, it, median, discount, decision, now)
			deal.Outlier = true
			deals = append(deals, deal)
		}
	}

	sort.SliceStable(deals, func(a, b int) bool {
		return deals[a].DiscountPercentage > deals[b].DiscountPercentage
	})
	if len(deals) > d.opts.MaxDeals {
		deals = deals[:d.opts.MaxDeals]
	}
	return deals
}

// ZScoreOutliers returns the indexes of itineraries whose price z-score,
// against the population mean and standard deviation, is below cutoff.
func ZScoreOutliers(its []models.PricedItinerary, cutoff float64) []int {
	_, mean, prices := Baselines(its)
	sd := utils.StdDev(prices)
	if sd == 0 {
		return nil
	}
	var out []int
	for i, it := range its {
		if it.Price <= 0 {
			continue
		}
		if (it.Price-mean)/sd < cutoff {
			out = append(out, i)
		}
	}
	return out
}

func (d *DealDetector) newDeal(route models.StrategicRoute, it models.PricedItinerary, baseline, discount float64, decision models.ThresholdDecision, now time.Time) models.Deal {
	return models.Deal{
		ID:                    d.newID(),
		Origin:                route.Origin,
		Destination:           route.Destination,
		Tier:                  route.Tier,
		Airline:               it.Airline,
		Cabin:                 it.Cabin,
		Stops:                 it.Stops,
		Currency:              it.Currency,
		CurrentPrice:          it.Price,
		OriginalPriceEstimate: utils.Round2(baseline),
		DiscountPercentage:    utils.Round2(discount),
		ValidationScore:       decision.Confidence,
		Threshold:             decision.Threshold,
		Reasoning:             decision.Reasoning,
		DepartureDate:         it.DepartureDate,
		ReturnDate:            it.ReturnDate,
		DeepLink:              it.DeepLink,
		DetectedAt:            now,
		ValidUntil:            now.Add(d.opts.Validity),
	}
}
