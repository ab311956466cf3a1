package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/scraper"
	"github.com/maous26/GG2-sub000/store"
	"github.com/maous26/GG2-sub000/utils"
)

type queryHarness struct {
	q        *QueryService
	budget   *BudgetService
	mem      *store.MemoryStore
	provider *fakeProvider
	delays   []time.Duration
}

func newQueryHarness(t *testing.T, monthlyCap int64, fn func(call int) ([]models.PricedItinerary, error)) *queryHarness {
	t.Helper()
	h := &queryHarness{mem: store.NewMemoryStore().WithClock(fixedClock), provider: &fakeProvider{fn: fn}}
	h.budget = NewBudgetService(h.mem, monthlyCap, 30, nil).WithClock(fixedClock)
	cache := NewCacheService(h.mem, 30*time.Minute, nil).WithClock(fixedClock)
	h.q = NewQueryService(h.provider, cache, h.budget, QueryOptions{
		Retry: utils.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2},
		Sleep: func(_ context.Context, d time.Duration) error {
			h.delays = append(h.delays, d)
			return nil
		},
	}, nil)
	return h
}

func (h *queryHarness) reserved(t *testing.T) (int64, int64) {
	t.Helper()
	usage, err := h.budget.Usage(context.Background())
	require.NoError(t, err)
	return usage.ReservedMonth, usage.ReservedDay
}

var searchOpts = models.SearchOptions{DepartureDate: testNow.AddDate(0, 0, 30), Adults: 1, Cabin: models.CabinEconomy, Currency: "EUR"}

func TestLookupServesRepeatsFromCache(t *testing.T) {
	ctx := context.Background()
	h := newQueryHarness(t, 30000, func(int) ([]models.PricedItinerary, error) {
		return itineraries(400, 500), nil
	})
	route := testRoute("CDG", "JFK", 1, 2)
	route.EstimatedCallsPerScan = 2

	first := h.q.Lookup(ctx, route, searchOpts)
	require.NoError(t, first.Err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 2, first.CallsUsed)
	assert.Len(t, first.Itineraries, 2)

	second := h.q.Lookup(ctx, route, searchOpts)
	assert.True(t, second.FromCache)
	assert.Zero(t, second.CallsUsed)
	assert.Equal(t, first.Itineraries, second.Itineraries)

	assert.Equal(t, 1, h.provider.Calls())
	month, day := h.reserved(t)
	assert.Equal(t, int64(2), month)
	assert.Equal(t, int64(2), day)
}

func TestLookupRetriesThenReturnsEmpty(t *testing.T) {
	h := newQueryHarness(t, 30000, func(int) ([]models.PricedItinerary, error) {
		return nil, &scraper.StatusError{Code: 503}
	})

	out := h.q.Lookup(context.Background(), testRoute("CDG", "JFK", 1, 2), searchOpts)
	require.Error(t, out.Err)
	assert.NotNil(t, out.Itineraries)
	assert.Empty(t, out.Itineraries)
	assert.Equal(t, 3, out.Attempts)
	assert.Zero(t, out.CallsUsed)
	assert.Equal(t, 3, h.provider.Calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.delays)

	month, day := h.reserved(t)
	assert.Zero(t, month, "failed query must release its reservation")
	assert.Zero(t, day)
}

func TestLookupDoesNotRetryClientErrors(t *testing.T) {
	h := newQueryHarness(t, 30000, func(int) ([]models.PricedItinerary, error) {
		return nil, &scraper.StatusError{Code: 400}
	})

	out := h.q.Lookup(context.Background(), testRoute("CDG", "JFK", 1, 2), searchOpts)
	require.Error(t, out.Err)
	assert.Equal(t, 1, h.provider.Calls())
	assert.Empty(t, h.delays)
}

func TestLookupRetriesMalformedResponses(t *testing.T) {
	h := newQueryHarness(t, 30000, func(call int) ([]models.PricedItinerary, error) {
		if call == 1 {
			return nil, fmt.Errorf("decode: %w", scraper.ErrMalformedResponse)
		}
		return itineraries(300), nil
	})

	out := h.q.Lookup(context.Background(), testRoute("CDG", "JFK", 1, 2), searchOpts)
	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 1, out.CallsUsed)
	assert.Len(t, out.Itineraries, 1)
}

func TestLookupSkipsUpstreamWhenBudgetExhausted(t *testing.T) {
	h := newQueryHarness(t, 30000, func(int) ([]models.PricedItinerary, error) {
		return itineraries(100), nil
	})
	h.mem.SetCounter("2026-10", 30000)

	out := h.q.Lookup(context.Background(), testRoute("CDG", "JFK", 1, 2), searchOpts)
	assert.ErrorIs(t, out.Err, ErrBudgetExhausted)
	assert.Empty(t, out.Itineraries)
	assert.Zero(t, h.provider.Calls())
}

func TestSearchReturnsOnlyItineraries(t *testing.T) {
	h := newQueryHarness(t, 30000, func(int) ([]models.PricedItinerary, error) {
		return nil, nil
	})
	got := h.q.Search(context.Background(), testRoute("CDG", "JFK", 1, 2), searchOpts)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLookupStopsWaitingWhenCallerCancels(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := newQueryHarness(t, 30000, func(int) ([]models.PricedItinerary, error) {
		close(started)
		<-release
		return itineraries(400, 500), nil
	})
	route := testRoute("CDG", "JFK", 1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan SearchOutcome, 1)
	go func() { done <- h.q.Lookup(ctx, route, searchOpts) }()
	<-started
	cancel()

	out := <-done
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Empty(t, out.Itineraries)

	// the upstream call still completes and fills the cache
	close(release)
	assert.Eventually(t, func() bool {
		again := h.q.Lookup(context.Background(), route, searchOpts)
		return again.Err == nil && again.FromCache && len(again.Itineraries) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.provider.Calls())
}

func TestLookupSharedCallOutlivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := newQueryHarness(t, 30000, func(int) ([]models.PricedItinerary, error) {
		close(started)
		<-release
		return itineraries(400, 500), nil
	})
	route := testRoute("CDG", "JFK", 1, 2)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leader := make(chan SearchOutcome, 1)
	go func() { leader <- h.q.Lookup(leaderCtx, route, searchOpts) }()
	<-started

	follower := make(chan SearchOutcome, 1)
	go func() { follower <- h.q.Lookup(context.Background(), route, searchOpts) }()
	cancelLeader()
	assert.ErrorIs(t, (<-leader).Err, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(release)

	out := <-follower
	require.NoError(t, out.Err)
	assert.Len(t, out.Itineraries, 2)
	assert.Equal(t, 1, h.provider.Calls())
	month, _ := h.reserved(t)
	assert.Equal(t, int64(1), month)
}
