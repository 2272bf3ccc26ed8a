// Package calendar turns a month of transactions and budgets into the
// calendar view: the day grid, per-day and per-month totals and per-category
// spending against budget.
//
// Only transactions dated inside the reference month are counted, so the
// per-day amounts of a grid always add up to the monthly totals.
package calendar

import (
	"sort"
	"time"

	"budgetcal/internal/core"
)

// DefaultUnknownCategory names expense rows whose category snapshot is empty.
const DefaultUnknownCategory = "不明"

// Day is one cell of the calendar grid.
type Day struct {
	Date           core.Date
	Key            string
	IsCurrentMonth bool
	IsToday        bool
	Income         int64
	Expense        int64
}

// Summary holds the monthly totals. BudgetRemaining is nil unless a budget
// was set for the month.
type Summary struct {
	Income          int64
	Expense         int64
	Budget          int64
	BudgetRemaining *int64
}

// CategoryExpense is the spending of one category. Budget is nil when no
// budget was set for the category, which is not the same as a zero budget.
type CategoryExpense struct {
	CategoryID   int64
	CategoryName string
	Color        string
	Amount       int64
	Budget       *int64
}

// MonthView is everything the calendar page shows for one month.
type MonthView struct {
	Month            core.Month
	MonthLabel       string
	Days             []Day
	Summary          Summary
	CategoryExpenses []CategoryExpense

	transactions []core.Transaction
}

// TransactionsForDate returns the transactions dated on key ("2006-01-02"),
// in input order.
func (v MonthView) TransactionsForDate(key string) []core.Transaction {
	var out []core.Transaction
	for _, tx := range v.transactions {
		if tx.Date.Key() == key {
			out = append(out, tx)
		}
	}
	return out
}

// Weeks splits the grid into rows of seven days, Sunday first.
func (v MonthView) Weeks() [][]Day {
	weeks := make([][]Day, 0, len(v.Days)/7)
	for i := 0; i+7 <= len(v.Days); i += 7 {
		weeks = append(weeks, v.Days[i:i+7])
	}
	return weeks
}

// Aggregator builds month views. It holds no state between calls.
type Aggregator struct {
	// Now is the wall clock used to mark today. Defaults to time.Now.
	Now func() time.Time
	// UnknownCategory names rows with no category name.
	UnknownCategory string
}

func New() *Aggregator {
	return &Aggregator{Now: time.Now, UnknownCategory: DefaultUnknownCategory}
}

// Build computes the view of the month containing ref.
func (a *Aggregator) Build(ref core.Date, txs []core.Transaction, budgets []core.Budget) MonthView {
	month := core.MonthOf(ref.Time)

	inMonth := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if month.Contains(tx.Date) {
			inMonth = append(inMonth, tx)
		}
	}

	return MonthView{
		Month:            month,
		MonthLabel:       month.Label(),
		Days:             a.days(month, inMonth),
		Summary:          summarize(month, inMonth, budgets),
		CategoryExpenses: a.categoryExpenses(month, inMonth, budgets),
		transactions:     append([]core.Transaction(nil), txs...),
	}
}

// GridBounds returns the Sunday on or before the first day of month and the
// Saturday on or after its last day.
func GridBounds(month core.Month) (core.Date, core.Date) {
	first := month.FirstDay()
	last := month.LastDay()
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))
	return core.Date{Time: start}, core.Date{Time: end}
}

func (a *Aggregator) days(month core.Month, inMonth []core.Transaction) []Day {
	daily := make(map[string]*Day, len(inMonth))
	for _, tx := range inMonth {
		key := tx.Date.Key()
		d, ok := daily[key]
		if !ok {
			d = &Day{}
			daily[key] = d
		}
		switch tx.Kind() {
		case core.Income:
			d.Income += tx.Amount
		case core.Expense:
			d.Expense += tx.Amount
		}
	}

	now := a.now()
	start, end := GridBounds(month)
	var days []Day
	for t := start.Time; !t.After(end.Time); t = t.AddDate(0, 0, 1) {
		date := core.Date{Time: t}
		day := Day{
			Date:           date,
			Key:            date.Key(),
			IsCurrentMonth: month.Contains(date),
			IsToday:        date.SameDay(now),
		}
		if totals, ok := daily[day.Key]; ok {
			day.Income = totals.Income
			day.Expense = totals.Expense
		}
		days = append(days, day)
	}
	return days
}

func summarize(month core.Month, inMonth []core.Transaction, budgets []core.Budget) Summary {
	var s Summary
	for _, tx := range inMonth {
		switch tx.Kind() {
		case core.Income:
			s.Income += tx.Amount
		case core.Expense:
			s.Expense += tx.Amount
		}
	}
	for _, b := range monthBudgets(month, budgets) {
		s.Budget += b.Amount
	}
	if s.Budget > 0 {
		remaining := s.Budget - s.Expense
		s.BudgetRemaining = &remaining
	}
	return s
}

func (a *Aggregator) categoryExpenses(month core.Month, inMonth []core.Transaction, budgets []core.Budget) []CategoryExpense {
	budgetByCategory := make(map[int64]int64)
	for _, b := range monthBudgets(month, budgets) {
		budgetByCategory[b.CategoryID] += b.Amount
	}

	index := make(map[int64]int)
	var rows []CategoryExpense
	for _, tx := range inMonth {
		if tx.Kind() != core.Expense {
			continue
		}
		i, ok := index[tx.CategoryID]
		if !ok {
			name := tx.Category.Name
			if name == "" {
				name = a.unknownCategory()
			}
			row := CategoryExpense{
				CategoryID:   tx.CategoryID,
				CategoryName: name,
				Color:        tx.Category.Color,
			}
			if amount, ok := budgetByCategory[tx.CategoryID]; ok {
				row.Budget = &amount
			}
			i = len(rows)
			index[tx.CategoryID] = i
			rows = append(rows, row)
		}
		rows[i].Amount += tx.Amount
	}

	// Equal amounts keep first-appearance order.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Amount > rows[j].Amount
	})
	return rows
}

// monthBudgets drops budgets explicitly scoped to another month.
func monthBudgets(month core.Month, budgets []core.Budget) []core.Budget {
	out := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		if b.Month != "" && b.Month != month.String() {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Aggregator) unknownCategory() string {
	if a.UnknownCategory != "" {
		return a.UnknownCategory
	}
	return DefaultUnknownCategory
}
