// services/budget_service.go
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/store"
	"github.com/maous26/GG2-sub000/utils"
)

// Reservation is a granted claim on the call budget. Release needs it to
// decrement the same month/day counters even across a UTC rollover.
type Reservation struct {
	MonthKey string
	DayKey   string
	Count    int64
}

// BudgetService allocates the monthly pool of upstream calls, with a derived
// daily sub-cap of floor(monthlyCap / daysPerMonth).
type BudgetService struct {
	counters   store.CounterStore
	monthlyCap int64
	dailyCap   int64
	now        func() time.Time
	logger     *slog.Logger
}

func NewBudgetService(counters store.CounterStore, monthlyCap, daysPerMonth int64, logger *slog.Logger) *BudgetService {
	if daysPerMonth <= 0 {
		daysPerMonth = 30
	}
	return &BudgetService{
		counters:   counters,
		monthlyCap: monthlyCap,
		dailyCap:   monthlyCap / daysPerMonth,
		now:        time.Now,
		logger:     utils.OrNop(logger).With("component", "budget"),
	}
}

// WithClock replaces the clock used to derive period keys.
func (b *BudgetService) WithClock(now func() time.Time) *BudgetService {
	b.now = now
	return b
}

// PeriodKeys returns the UTC month ("2006-01") and day ("2006-01-02") keys for t.
func PeriodKeys(t time.Time) (string, string) {
	t = t.UTC()
	return t.Format("2006-01"), t.Format("2006-01-02")
}

// Reserve claims n calls. It returns false, without side effects, when either
// cap would be exceeded. A store failure is also reported as false: the caller
// skips the query rather than spending unaccounted calls.
func (b *BudgetService) Reserve(ctx context.Context, n int) (Reservation, bool) {
	if n <= 0 {
		return Reservation{}, true
	}
	monthKey, dayKey := PeriodKeys(b.now())
	ok, err := b.counters.Reserve(ctx, monthKey, dayKey, int64(n), b.monthlyCap, b.dailyCap)
	if err != nil {
		budgetReservationsTotal.WithLabelValues("error").Inc()
		b.logger.Error("budget reservation failed", "calls", n, "error", err)
		return Reservation{}, false
	}
	if !ok {
		budgetReservationsTotal.WithLabelValues("denied").Inc()
		b.logger.Warn("budget exhausted, skipping query", "calls", n, "month", monthKey, "day", dayKey)
		return Reservation{}, false
	}
	budgetReservationsTotal.WithLabelValues("granted").Inc()
	return Reservation{MonthKey: monthKey, DayKey: dayKey, Count: int64(n)}, true
}

// Release gives back a reservation that was not spent.
func (b *BudgetService) Release(ctx context.Context, r Reservation) {
	if r.Count <= 0 {
		return
	}
	if err := b.counters.Release(ctx, r.MonthKey, r.DayKey, r.Count); err != nil {
		b.logger.Error("budget release failed", "calls", r.Count, "month", r.MonthKey, "error", err)
		return
	}
	budgetReservationsTotal.WithLabelValues("released").Inc()
}

// Usage returns the counters of the current period.
func (b *BudgetService) Usage(ctx context.Context) (models.BudgetCounters, error) {
	monthKey, dayKey := PeriodKeys(b.now())
	m, d, err := b.counters.Counters(ctx, monthKey, dayKey)
	if err != nil {
		return models.BudgetCounters{}, err
	}
	budgetReservedGauge.WithLabelValues("month").Set(float64(m))
	budgetReservedGauge.WithLabelValues("day").Set(float64(d))
	return models.BudgetCounters{
		MonthKey:      monthKey,
		DayKey:        dayKey,
		ReservedMonth: m,
		ReservedDay:   d,
		MonthlyCap:    b.monthlyCap,
		DailyCap:      b.dailyCap,
	}, nil
}
