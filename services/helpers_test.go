package services

import (
	"context"
	"sync"
	"time"

	"github.com/maous26/GG2-sub000/models"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func noSleep(context.Context, time.Duration) error { return nil }

func testRoute(origin, dest string, tier int, freq float64, segs ...models.Segment) models.StrategicRoute {
	if len(segs) == 0 {
		segs = models.SegmentSet{models.SegmentPremium}
	}
	return models.StrategicRoute{
		Origin:                origin,
		Destination:           dest,
		Tier:                  tier,
		ScanFrequencyHours:    freq,
		EstimatedCallsPerScan: 1,
		Priority:              50,
		TargetUserSegments:    segs,
	}
}

func itineraries(prices ...float64) []models.PricedItinerary {
	out := make([]models.PricedItinerary, len(prices))
	for i, p := range prices {
		out[i] = models.PricedItinerary{
			Price:         p,
			Currency:      "EUR",
			Cabin:         models.CabinEconomy,
			DepartureDate: testNow.AddDate(0, 0, 30),
			Airline:       "AF",
		}
	}
	return out
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) ([]models.PricedItinerary, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(_ context.Context, _ models.StrategicRoute, _ models.SearchOptions) ([]models.PricedItinerary, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	return p.fn(call)
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeDirectory struct {
	mu      sync.Mutex
	users   []models.UserRef
	err     error
	queries []models.UserQuery
}

func (d *fakeDirectory) FindUsers(_ context.Context, q models.UserQuery) ([]models.UserRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, q)
	return d.users, d.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, ns []models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, ns...)
	return nil
}

type fakeRepo struct {
	mu      sync.Mutex
	prices  []models.PricePoint
	history []float64
	deals   []models.Deal
	alerts  []models.Alert
	runs    []models.ScanReport
	dealErr error

	prunedBefore time.Time
}

func (r *fakeRepo) RecordPrices(_ context.Context, points []models.PricePoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, points...)
	return nil
}

func (r *fakeRepo) PriceHistory(context.Context, string, string, time.Time) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history, nil
}

func (r *fakeRepo) SaveDeal(_ context.Context, d models.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dealErr != nil {
		return r.dealErr
	}
	r.deals = append(r.deals, d)
	return nil
}

func (r *fakeRepo) SaveAlert(_ context.Context, a models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *fakeRepo) SaveScanRun(_ context.Context, run models.ScanReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRepo) PrunePriceHistory(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prunedBefore = before
	return 3, nil
}
