package core

import (
	"sort"
	"time"
)

// The aggregation functions in this file are pure and stateless: for a fixed
// transaction set and a fixed reference time every result is deterministic.
// They fold a snapshot of the transaction log; nothing is cached between
// calls.

// Totals is the income/expense partition of the whole log.
type Totals struct {
	Income  Money
	Expense Money
}

// CategoryAmount is an expense total aggregated by category name.
type CategoryAmount struct {
	Category string
	Total    Money
}

// MonthPoint is one calendar-month bucket of the trend series. NetCents can
// be negative, so it is kept as raw cents rather than a Money magnitude.
type MonthPoint struct {
	Label    string // e.g. "Jan 2025"
	Year     int
	Month    time.Month
	Income   Money
	Expense  Money
	NetCents int64
}

// TotalsByType sums transaction amounts partitioned by type.
func TotalsByType(txns []Transaction) Totals {
	var t Totals
	for _, txn := range txns {
		switch txn.Type {
		case Income:
			t.Income = t.Income.Add(txn.Amount)
		case Expense:
			t.Expense = t.Expense.Add(txn.Amount)
		}
	}
	return t
}

// CategoryBreakdown sums expense transactions by category and returns the
// topN categories ordered by descending total. Equal totals keep the order
// in which their categories first appear in the input; the sort is stable,
// so a given input ordering always yields the same output.
func CategoryBreakdown(txns []Transaction, topN int) []CategoryAmount {
	totals := make(map[string]int64)
	var order []string
	for _, txn := range txns {
		if txn.Type != Expense {
			continue
		}
		if _, seen := totals[txn.Category]; !seen {
			order = append(order, txn.Category)
		}
		totals[txn.Category] += txn.Amount.Cents
	}

	out := make([]CategoryAmount, 0, len(order))
	for _, cat := range order {
		out = append(out, CategoryAmount{Category: cat, Total: Money{Cents: totals[cat]}})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.Cents > out[j].Total.Cents
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// MonthlyTrend partitions transactions into calendar-month buckets for the
// trailing monthsBack months ending at the month of now (inclusive). The
// series is dense: months with no activity appear with zero totals.
func MonthlyTrend(txns []Transaction, monthsBack int, now time.Time) []MonthPoint {
	if monthsBack < 1 {
		monthsBack = 1
	}

	points := make([]MonthPoint, monthsBack)
	index := make(map[int]int, monthsBack)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, -(monthsBack - 1), 0)
	for i := 0; i < monthsBack; i++ {
		m := first.AddDate(0, i, 0)
		points[i] = MonthPoint{
			Label: m.Format("Jan 2006"),
			Year:  m.Year(),
			Month: m.Month(),
		}
		index[m.Year()*100+int(m.Month())] = i
	}

	for _, txn := range txns {
		i, ok := index[txn.Date.Year()*100+int(txn.Date.Month())]
		if !ok {
			continue
		}
		switch txn.Type {
		case Income:
			points[i].Income = points[i].Income.Add(txn.Amount)
		case Expense:
			points[i].Expense = points[i].Expense.Add(txn.Amount)
		}
	}
	for i := range points {
		points[i].NetCents = points[i].Income.Cents - points[i].Expense.Cents
	}
	return points
}
