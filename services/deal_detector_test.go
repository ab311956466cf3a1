package services

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maous26/GG2-sub000/models"
)

func newTestDetector(opts DetectorOptions) *DealDetector {
	return NewDealDetector(DefaultThresholdPolicy(), opts).WithClock(fixedClock)
}

func TestDetectFlagsPriceWellBelowMedian(t *testing.T) {
	d := newTestDetector(DetectorOptions{})
	route := testRoute("CDG", "JFK", 1, 2)

	deals := d.Detect(route, itineraries(650, 600, 590, 210), nil)
	require.Len(t, deals, 1)

	deal := deals[0]
	assert.Equal(t, 210.0, deal.CurrentPrice)
	assert.Equal(t, 595.0, deal.OriginalPriceEstimate)
	assert.Equal(t, 64.71, deal.DiscountPercentage)
	assert.Equal(t, 25.0, deal.Threshold)
	assert.Equal(t, "CDG", deal.Origin)
	assert.Equal(t, 1, deal.Tier)
	assert.NotEmpty(t, deal.ID)
	assert.Equal(t, testNow, deal.DetectedAt)
	assert.Equal(t, testNow.Add(24*time.Hour), deal.ValidUntil)
	assert.False(t, deal.Outlier)
	assert.Contains(t, deal.Reasoning, "clears threshold")
}

func TestDetectNoDealsOnFlatPrices(t *testing.T) {
	d := newTestDetector(DetectorOptions{})
	assert.Empty(t, d.Detect(testRoute("CDG", "JFK", 1, 2), itineraries(500, 510, 490), nil))
	assert.Empty(t, d.Detect(testRoute("CDG", "JFK", 1, 2), nil, nil))
}

func TestDetectSortsAndCaps(t *testing.T) {
	d := newTestDetector(DetectorOptions{MaxDeals: 2})
	deals := d.Detect(testRoute("CDG", "JFK", 1, 2), itineraries(1000, 1000, 300, 1000, 200, 1000, 100, 1000), nil)

	require.Len(t, deals, 2)
	assert.Equal(t, 100.0, deals[0].CurrentPrice)
	assert.Equal(t, 200.0, deals[1].CurrentPrice)
	assert.Greater(t, deals[0].DiscountPercentage, deals[1].DiscountPercentage)
}

func TestDetectLowerPriceNeverLosesDealStatus(t *testing.T) {
	d := newTestDetector(DetectorOptions{})
	route := testRoute("CDG", "JFK", 2, 6)
	base := []float64{500, 500, 500, 500}

	qualified := false
	for price := 500.0; price > 0; price -= 10 {
		deals := d.Detect(route, itineraries(append(base, price)...), nil)
		if qualified {
			assert.NotEmpty(t, deals, "price %.0f", price)
		}
		if len(deals) > 0 {
			qualified = true
		}
	}
	assert.True(t, qualified)
}

func TestDiscountFallsAsPriceRises(t *testing.T) {
	prices := []float64{650, 600, 590, 210}

	prev := math.Inf(1)
	steps := 0
	for p := 210.0; ; p += 10 {
		prices[3] = p
		median, mean, _ := Baselines(itineraries(prices...))
		discount, _ := BestDiscount(p, median, mean)
		if discount == 0 {
			break
		}
		assert.Less(t, discount, prev, "price %.0f", p)
		prev = discount
		steps++
	}
	assert.Greater(t, steps, 30)

	median, mean, _ := Baselines(itineraries(650, 600, 590, 210))
	discount, baseline := BestDiscount(210, median, mean)
	assert.Equal(t, 595.0, baseline)
	assert.InDelta(t, 64.7, discount, 0.05)
	d, _ := BestDiscount(650, median, mean)
	assert.Zero(t, d)
}

func TestZScoreOutliers(t *testing.T) {
	its := itineraries(500, 500, 500, 500, 500, 500, 500, 500, 500, 100)
	assert.Equal(t, []int{9}, ZScoreOutliers(its, -2))
	assert.Empty(t, ZScoreOutliers(its, -3.5))
	assert.Empty(t, ZScoreOutliers(itineraries(100, 100), -2))
}

func TestDetectMarksOutliers(t *testing.T) {
	route := testRoute("CDG", "JFK", 1, 2)
	its := itineraries(500, 500, 500, 500, 500, 500, 500, 500, 500, 100)

	deals := newTestDetector(DetectorOptions{ZScoreEnabled: true}).Detect(route, its, nil)
	require.Len(t, deals, 1)
	assert.True(t, deals[0].Outlier)

	deals = newTestDetector(DetectorOptions{}).Detect(route, its, nil)
	require.Len(t, deals, 1)
	assert.False(t, deals[0].Outlier)
}

func TestDetectAddsOutlierBelowThreshold(t *testing.T) {
	route := testRoute("CDG", "JFK", 1, 2)
	prices := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		prices = append(prices, 100)
	}
	prices = append(prices, 90)

	assert.Empty(t, newTestDetector(DetectorOptions{}).Detect(route, itineraries(prices...), nil))

	deals := newTestDetector(DetectorOptions{ZScoreEnabled: true}).Detect(route, itineraries(prices...), nil)
	require.Len(t, deals, 1)
	assert.True(t, deals[0].Outlier)
	assert.Equal(t, 10.0, deals[0].DiscountPercentage)
	assert.Contains(t, deals[0].Reasoning, "z-score")
}

func TestDetectUsesMostSensitiveSegment(t *testing.T) {
	d := newTestDetector(DetectorOptions{})
	its := itineraries(100, 100, 100, 100, 78)

	free := testRoute("CDG", "JFK", 1, 2, models.SegmentFree)
	assert.Empty(t, d.Detect(free, its, nil))

	mixed := testRoute("CDG", "JFK", 1, 2, models.SegmentFree, models.SegmentEnterprise)
	deals := d.Detect(mixed, its, nil)
	require.Len(t, deals, 1)
	assert.Equal(t, 20.0, deals[0].Threshold)
}
