package query

import (
	"context"
	"net/url"

	"budgetcal/internal/api"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
)

// Key prefixes, one per backend resource. Invalidating a prefix drops every
// cached query of that resource.
const (
	PrefixTransactions = "transactions"
	PrefixBudgets      = "budgets"
	PrefixCategories   = "categories"
)

// Backend is the part of the API client the loader reads through.
type Backend interface {
	ListTransactions(ctx context.Context, start, end core.Date) ([]core.Transaction, error)
	ListBudgets(ctx context.Context, month core.Month) ([]core.Budget, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

func key(prefix string, q url.Values) string {
	if len(q) == 0 {
		return prefix
	}
	return prefix + "?" + q.Encode()
}

func TransactionsKey(start, end core.Date) string {
	return key(PrefixTransactions, api.TransactionsQuery(start, end))
}

func BudgetsKey(month core.Month) string {
	return key(PrefixBudgets, api.BudgetsQuery(month))
}

// Loader reads resources through a session's query cache.
type Loader struct {
	cache   *Cache
	backend Backend
}

func NewLoader(c *Cache, backend Backend) *Loader {
	return &Loader{cache: c, backend: backend}
}

func (l *Loader) Cache() *Cache {
	return l.cache
}

// Transactions returns the transactions dated between start and end,
// inclusive.
func (l *Loader) Transactions(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	return Fetch(ctx, l.cache, TransactionsKey(start, end), l.transactions(start, end))
}

// MonthTransactions returns the transactions of every day shown in the
// calendar grid of month.
func (l *Loader) MonthTransactions(ctx context.Context, month core.Month) ([]core.Transaction, error) {
	start, end := calendar.GridBounds(month)
	return l.Transactions(ctx, start, end)
}

func (l *Loader) Budgets(ctx context.Context, month core.Month) ([]core.Budget, error) {
	return Fetch(ctx, l.cache, BudgetsKey(month), l.budgets(month))
}

func (l *Loader) Categories(ctx context.Context) ([]core.Category, error) {
	return Fetch(ctx, l.cache, PrefixCategories, l.backend.ListCategories)
}

// PrefetchMonth warms the calendar data of month in the background.
func (l *Loader) PrefetchMonth(month core.Month) {
	start, end := calendar.GridBounds(month)
	Prefetch(l.cache, TransactionsKey(start, end), l.transactions(start, end))
	Prefetch(l.cache, BudgetsKey(month), l.budgets(month))
}

// Invalidate drops every cached query of resource.
func (l *Loader) Invalidate(resource string) {
	l.cache.Invalidate(resource)
}

func (l *Loader) transactions(start, end core.Date) func(context.Context) ([]core.Transaction, error) {
	return func(ctx context.Context) ([]core.Transaction, error) {
		return l.backend.ListTransactions(ctx, start, end)
	}
}

func (l *Loader) budgets(month core.Month) func(context.Context) ([]core.Budget, error) {
	return func(ctx context.Context) ([]core.Budget, error) {
		return l.backend.ListBudgets(ctx, month)
	}
}
