package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetcal/internal/core"
)

type fakeBackend struct {
	mu       sync.Mutex
	ranges   []string
	months   []string
	catCalls int
	fail     bool
}

func (f *fakeBackend) ListTransactions(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("offline")
	}
	f.ranges = append(f.ranges, start.Key()+".."+end.Key())
	return []core.Transaction{{ID: 1, Date: start}}, nil
}

func (f *fakeBackend) ListBudgets(ctx context.Context, month core.Month) ([]core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("offline")
	}
	f.months = append(f.months, month.String())
	return []core.Budget{{ID: 1, Month: month.String()}}, nil
}

func (f *fakeBackend) ListCategories(ctx context.Context) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catCalls++
	return []core.Category{{ID: 1, Name: "食費"}}, nil
}

func TestLoaderMonthTransactionsUsesGridRange(t *testing.T) {
	backend := &fakeBackend{}
	l := NewLoader(New(Options{}), backend)

	txs, err := l.MonthTransactions(context.Background(), core.Month{Year: 2024, Month: time.June})
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Fatalf("txs = %v", txs)
	}
	if len(backend.ranges) != 1 || backend.ranges[0] != "2024-05-26..2024-07-06" {
		t.Errorf("ranges = %v", backend.ranges)
	}
}

func TestLoaderCachesAndInvalidates(t *testing.T) {
	backend := &fakeBackend{}
	l := NewLoader(New(Options{}), backend)
	ctx := context.Background()

	l.Categories(ctx)
	l.Categories(ctx)
	if backend.catCalls != 1 {
		t.Errorf("categories fetched %d times", backend.catCalls)
	}
	l.Invalidate(PrefixCategories)
	l.Categories(ctx)
	if backend.catCalls != 2 {
		t.Errorf("categories not refetched after invalidation")
	}
}

func TestLoaderPrefetchMonth(t *testing.T) {
	backend := &fakeBackend{}
	l := NewLoader(New(Options{}), backend)
	july := core.Month{Year: 2024, Month: time.July}

	l.PrefetchMonth(july)
	l.Cache().Wait()

	if len(backend.months) != 1 || backend.months[0] != "2024-07" {
		t.Errorf("months = %v", backend.months)
	}
	if _, err := l.Budgets(context.Background(), july); err != nil {
		t.Fatal(err)
	}
	if len(backend.months) != 1 {
		t.Error("prefetched month fetched again")
	}
}

func TestLoaderPrefetchFailureIsSilent(t *testing.T) {
	backend := &fakeBackend{fail: true}
	l := NewLoader(New(Options{}), backend)
	l.PrefetchMonth(core.Month{Year: 2024, Month: time.July})
	l.Cache().Wait()
	if l.Cache().Size() != 0 {
		t.Error("nothing should be cached")
	}
}
