// services/query_service.go
package services

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/scraper"
	"github.com/maous26/GG2-sub000/utils"
)

// ErrBudgetExhausted is reported in SearchOutcome.Err when the query was
// skipped for lack of budget. It is a signal, not a failure.
var ErrBudgetExhausted = errors.New("call budget exhausted")

// SearchOutcome is the detailed result of one Lookup.
type SearchOutcome struct {
	Itineraries []models.PricedItinerary
	FromCache   bool
	// CallsUsed is the budget actually spent, 0 on cache hits, skips and failures.
	CallsUsed int
	Attempts  int
	// Err is set when the result was degraded to empty.
	Err error
}

// QueryOptions tunes a QueryService.
type QueryOptions struct {
	Retry             utils.RetryPolicy
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Sleep             utils.Sleeper
}

// QueryService is the external query client: cache first, then budget, then
// the upstream provider with bounded retries. It never synthesizes data; every
// failure path returns an empty result.
type QueryService struct {
	provider scraper.FareProvider
	cache    *CacheService
	budget   *BudgetService
	limiter  *rate.Limiter
	retry    utils.RetryPolicy
	timeout  time.Duration
	sleep    utils.Sleeper
	group    singleflight.Group
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewQueryService(provider scraper.FareProvider, cache *CacheService, budget *BudgetService, opts QueryOptions, logger *slog.Logger) *QueryService {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = utils.DefaultRetryPolicy()
	}
	if opts.Sleep == nil {
		opts.Sleep = utils.SleepContext
	}
	return &QueryService{
		provider: provider,
		cache:    cache,
		budget:   budget,
		limiter:  rate.NewLimiter(limit, 1),
		retry:    opts.Retry,
		timeout:  opts.RequestTimeout,
		sleep:    opts.Sleep,
		tracer:   otel.Tracer("flightdeals/services"),
		logger:   utils.OrNop(logger).With("component", "query", "provider", provider.Name()),
	}
}

// Search returns the itineraries for route and opts, possibly empty.
func (q *QueryService) Search(ctx context.Context, route models.StrategicRoute, opts models.SearchOptions) []models.PricedItinerary {
	return q.Lookup(ctx, route, opts).Itineraries
}

type flight struct {
	out     SearchOutcome
	claimed atomic.Bool
}

// Lookup is Search with accounting details. Concurrent lookups of the same
// fingerprint share one upstream call; only one of them reports its cost.
// The shared call does not inherit cancellation, so one caller giving up does
// not fail the others; a caller whose ctx ends stops waiting and gets ctx.Err().
func (q *QueryService) Lookup(ctx context.Context, route models.StrategicRoute, opts models.SearchOptions) SearchOutcome {
	fp := Fingerprint(route, opts)
	shared := context.WithoutCancel(ctx)
	ch := q.group.DoChan(fp, func() (interface{}, error) {
		return &flight{out: q.lookup(shared, fp, route, opts)}, nil
	})
	select {
	case <-ctx.Done():
		return SearchOutcome{Itineraries: []models.PricedItinerary{}, Err: ctx.Err()}
	case res := <-ch:
		f := res.Val.(*flight)
		out := f.out
		out.Itineraries = append([]models.PricedItinerary{}, f.out.Itineraries...)
		if !f.claimed.CompareAndSwap(false, true) {
			out.CallsUsed = 0
		}
		return out
	}
}

func (q *QueryService) lookup(ctx context.Context, fp string, route models.StrategicRoute, opts models.SearchOptions) SearchOutcome {
	ctx, span := q.tracer.Start(ctx, "query.search", trace.WithAttributes(
		attribute.String("route", route.Key()),
		attribute.String("fingerprint", fp),
	))
	defer span.End()

	if cached, ok := q.cache.Get(ctx, fp); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return SearchOutcome{Itineraries: cached, FromCache: true}
	}

	cost := route.CallCost()
	reservation, ok := q.budget.Reserve(ctx, cost)
	if !ok {
		span.SetAttributes(attribute.Bool("budget_denied", true))
		return SearchOutcome{Itineraries: []models.PricedItinerary{}, Err: ErrBudgetExhausted}
	}

	var result []models.PricedItinerary
	state, err := q.retry.Do(ctx, q.sleep, func(attempt int) error {
		if err := q.limiter.Wait(ctx); err != nil {
			return err
		}
		its, err := q.callProvider(ctx, route, opts)
		if err != nil {
			upstreamCallsTotal.WithLabelValues(q.provider.Name(), outcomeLabel(err)).Inc()
			q.logger.Warn("upstream query failed", "route", route.Key(), "attempt", attempt, "max_attempts", q.retry.MaxAttempts, "error", err)
			return err
		}
		upstreamCallsTotal.WithLabelValues(q.provider.Name(), "ok").Inc()
		result = its
		return nil
	})
	span.SetAttributes(attribute.Int("attempts", state.Attempt()))

	if err != nil {
		q.budget.Release(context.WithoutCancel(ctx), reservation)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream query failed")
		q.logger.Error("upstream query abandoned, returning empty result",
			"route", route.Key(), "attempts", state.Attempt(), "phase", state.Phase().String(), "error", err)
		return SearchOutcome{Itineraries: []models.PricedItinerary{}, Attempts: state.Attempt(), Err: err}
	}

	if result == nil {
		result = []models.PricedItinerary{}
	}
	if err := q.cache.Put(ctx, fp, result); err != nil {
		q.logger.Warn("cache write failed", "route", route.Key(), "error", err)
	}
	return SearchOutcome{Itineraries: result, CallsUsed: cost, Attempts: state.Attempt()}
}

// attemptTimeout is a per-call deadline that fired while the caller's own
// context was still live. Unlike caller cancellation it is retried.
type attemptTimeout struct{ err error }

func (e *attemptTimeout) Error() string { return "upstream call timed out: " + e.err.Error() }
func (e *attemptTimeout) Unwrap() error { return e.err }
func (e *attemptTimeout) Retryable() bool { return true }

func (q *QueryService) callProvider(ctx context.Context, route models.StrategicRoute, opts models.SearchOptions) ([]models.PricedItinerary, error) {
	callCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	its, err := q.provider.Search(callCtx, route, opts)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, &attemptTimeout{err: err}
	}
	return its, err
}

func outcomeLabel(err error) string {
	var se *scraper.StatusError
	switch {
	case errors.As(err, &se):
		if se.Retryable() {
			return "server_error"
		}
		return "client_error"
	case errors.Is(err, scraper.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "transport_error"
}
