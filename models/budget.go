// models/budget.go
package models

// BudgetCounters is a snapshot of the external-call quota for the current UTC month and day.
type BudgetCounters struct {
	MonthKey      string `json:"monthKey"`
	DayKey        string `json:"dayKey"`
	ReservedMonth int64  `json:"reservedMonth"`
	ReservedDay   int64  `json:"reservedDay"`
	MonthlyCap    int64  `json:"monthlyCap"`
	DailyCap      int64  `json:"dailyCap"`
}

// RemainingMonth is the monthly headroom.
func (b BudgetCounters) RemainingMonth() int64 {
	if b.ReservedMonth >= b.MonthlyCap {
		return 0
	}
	return b.MonthlyCap - b.ReservedMonth
}

// RemainingDay is the daily headroom.
func (b BudgetCounters) RemainingDay() int64 {
	if b.ReservedDay >= b.DailyCap {
		return 0
	}
	return b.DailyCap - b.ReservedDay
}
