package expense

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
	"github.com/shopspring/decimal"
)

// Get returns a copy of one expense.
func (s *Store) Get(id string) (model.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Expense{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.items[idx].Clone(), nil
}

// All returns every expense ordered by date.
func (s *Store) All() []model.Expense {
	return s.filter(func(model.Expense) bool { return true })
}

// QueryByMonth returns the expenses dated in the given month, ordered by date.
func (s *Store) QueryByMonth(year int, month time.Month) []model.Expense {
	return s.filter(func(e model.Expense) bool { return e.Date.In(year, month) })
}

// QueryByDay returns the expenses dated on day.
func (s *Store) QueryByDay(day model.Date) []model.Expense {
	return s.filter(func(e model.Expense) bool { return e.Date == day })
}

// DueOn returns the unpaid expenses dated on day.
func (s *Store) DueOn(day model.Date) []model.Expense {
	return s.filter(func(e model.Expense) bool { return e.Date == day && !e.IsPaid })
}

// Series returns every member of the series id belongs to.
func (s *Store) Series(id string) ([]model.Expense, error) {
	s.mu.RLock()
	rid, err := s.groupLocked(id)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return s.filter(func(e model.Expense) bool { return e.InGroup(rid) }), nil
}

func (s *Store) filter(keep func(model.Expense) bool) []model.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Expense, 0)
	for _, e := range s.items {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b model.Expense) int {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case b.Date.Before(a.Date):
			return 1
		default:
			return 0
		}
	})
	return out
}

// CurrencyTotals holds one amount per currency.
type CurrencyTotals map[model.Currency]decimal.Decimal

// Add accumulates amount under currency.
func (c CurrencyTotals) Add(currency model.Currency, amount decimal.Decimal) {
	c[currency] = c[currency].Add(amount)
}

// String renders the totals in model.Currencies order, e.g. "1500 TRY, 20 USD".
func (c CurrencyTotals) String() string {
	parts := make([]string, 0, len(c))
	for _, cur := range c.Currencies() {
		parts = append(parts, c[cur].String()+" "+string(cur))
	}
	return strings.Join(parts, ", ")
}

// Currencies lists the currencies present, known ones first.
func (c CurrencyTotals) Currencies() []model.Currency {
	var out []model.Currency
	for _, cur := range model.Currencies {
		if _, ok := c[cur]; ok {
			out = append(out, cur)
		}
	}
	var extra []model.Currency
	for cur := range c {
		if !cur.Valid() {
			extra = append(extra, cur)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// MonthSummary aggregates a month for display. Currencies are never mixed.
type MonthSummary struct {
	Total     CurrencyTotals
	Remaining CurrencyTotals
	Month     time.Month
	Year      int
	Count     int
	PaidCount int
}

// Summary totals the month's expenses and what is still unpaid.
func (s *Store) Summary(year int, month time.Month) MonthSummary {
	sum := MonthSummary{
		Year:      year,
		Month:     month,
		Total:     CurrencyTotals{},
		Remaining: CurrencyTotals{},
	}
	for _, e := range s.QueryByMonth(year, month) {
		sum.Count++
		sum.Total.Add(e.Currency, e.Amount)
		if e.IsPaid {
			sum.PaidCount++
			continue
		}
		sum.Remaining.Add(e.Currency, e.Amount)
	}
	return sum
}
