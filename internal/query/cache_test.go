package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetcal/internal/core"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(clock *testClock) *Cache {
	return New(Options{StaleTime: 5 * time.Minute, GCTime: 10 * time.Minute, Now: clock.Now})
}

func counting[T any](calls *int32, v T) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		atomic.AddInt32(calls, 1)
		return v, nil
	}
}

func TestFetchServesFreshResults(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)}
	var hits []bool
	c := New(Options{Now: clock.Now, OnLookup: func(hit bool) { hits = append(hits, hit) }})
	var calls int32
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := Fetch(ctx, c, "categories", counting(&calls, "a"))
		if err != nil || v != "a" {
			t.Fatalf("Fetch = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("fetched %d times, want 1", calls)
	}
	if len(hits) != 3 || hits[0] || !hits[1] || !hits[2] {
		t.Errorf("lookups = %v", hits)
	}
}

func TestFetchRefetchesStaleResults(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)}
	c := newTestCache(clock)
	var calls int32
	ctx := context.Background()

	Fetch(ctx, c, "k", counting(&calls, 1))
	clock.Advance(5*time.Minute - time.Second)
	Fetch(ctx, c, "k", counting(&calls, 1))
	if calls != 1 {
		t.Fatalf("refetched while fresh")
	}
	clock.Advance(time.Second)
	Fetch(ctx, c, "k", counting(&calls, 1))
	if calls != 2 {
		t.Errorf("stale entry not refetched, calls = %d", calls)
	}
}

func TestFetchKeysAreIndependent(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	june, _ := Fetch(ctx, c, BudgetsKey(core.Month{Year: 2024, Month: time.June}), func(context.Context) (string, error) { return "june", nil })
	july, _ := Fetch(ctx, c, BudgetsKey(core.Month{Year: 2024, Month: time.July}), func(context.Context) (string, error) { return "july", nil })
	if june != "june" || july != "july" {
		t.Errorf("got %q and %q", june, july)
	}
	again, _ := Fetch(ctx, c, BudgetsKey(core.Month{Year: 2024, Month: time.June}), func(context.Context) (string, error) { return "wrong", nil })
	if again != "june" {
		t.Errorf("month A served month B's data: %q", again)
	}
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	c := New(Options{})
	boom := errors.New("boom")
	var calls int32
	fail := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, boom
	}
	if _, err := Fetch(context.Background(), c, "k", fail); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Fetch(context.Background(), c, "k", fail); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestFetchSharesConcurrentCalls(t *testing.T) {
	c := New(Options{})
	release := make(chan struct{})
	var calls int32
	slow := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Fetch(context.Background(), c, "k", slow)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	for _, r := range results {
		if r != 7 {
			t.Errorf("results = %v", results)
			break
		}
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	june := core.Month{Year: 2024, Month: time.June}
	start, end := core.NewDate(2024, 5, 26), core.NewDate(2024, 7, 6)

	var calls int32
	Fetch(ctx, c, TransactionsKey(start, end), counting(&calls, 1))
	Fetch(ctx, c, TransactionsKey(core.NewDate(2024, 6, 30), core.NewDate(2024, 8, 3)), counting(&calls, 2))
	Fetch(ctx, c, BudgetsKey(june), counting(&calls, 3))

	if n := c.Invalidate(PrefixTransactions); n != 2 {
		t.Errorf("invalidated %d, want 2", n)
	}
	Fetch(ctx, c, BudgetsKey(june), counting(&calls, 3))
	if calls != 3 {
		t.Errorf("budgets refetched after transactions invalidation")
	}
	Fetch(ctx, c, TransactionsKey(start, end), counting(&calls, 1))
	if calls != 4 {
		t.Errorf("transactions not refetched after invalidation")
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("size after clear = %d", c.Size())
	}
}

func TestInvalidateDuringFetchDiscardsResult(t *testing.T) {
	c := New(Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		Fetch(context.Background(), c, "transactions?x", func(context.Context) (string, error) {
			close(started)
			<-release
			return "before mutation", nil
		})
	}()
	<-started
	c.Invalidate(PrefixTransactions)
	close(release)
	<-done

	v, _ := Fetch(context.Background(), c, "transactions?x", func(context.Context) (string, error) {
		return "after mutation", nil
	})
	if v != "after mutation" {
		t.Errorf("stale in-flight result was stored: %q", v)
	}
}

func TestFetchAfterInvalidateStartsNewCall(t *testing.T) {
	c := New(Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		Fetch(context.Background(), c, "transactions?x", func(context.Context) (string, error) {
			close(started)
			<-release
			return "before mutation", nil
		})
	}()
	<-started
	c.Invalidate(PrefixTransactions)

	// Joining the earlier call would block until release.
	timer := time.AfterFunc(time.Second, func() { close(release) })
	v, err := Fetch(context.Background(), c, "transactions?x", func(context.Context) (string, error) {
		return "after mutation", nil
	})
	if timer.Stop() {
		close(release)
	}
	<-done
	if err != nil || v != "after mutation" {
		t.Fatalf("Fetch after invalidation = %q, %v", v, err)
	}

	v, _ = Fetch(context.Background(), c, "transactions?x", func(context.Context) (string, error) {
		return "unexpected", nil
	})
	if v != "after mutation" {
		t.Errorf("cached value = %q, want the post-invalidation result", v)
	}
}

func TestFetchSurvivesCancelledCaller(t *testing.T) {
	c := New(Options{})
	var calls int32
	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		once.Do(func() { close(started) })
		select {
		case <-release:
			return "loaded", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, "k", load)
		errA <- err
	}()
	<-started
	cancel()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller got %v, want context.Canceled", err)
	}

	type result struct {
		v   string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, "k", load)
		resB <- result{v, err}
	}()
	close(release)

	res := <-resB
	if res.err != nil || res.v != "loaded" {
		t.Fatalf("live caller = %q, %v", res.v, res.err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}
}

func TestFetchTimeoutBoundsSharedCall(t *testing.T) {
	c := New(Options{FetchTimeout: 10 * time.Millisecond})
	_, err := Fetch(context.Background(), c, "k", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestPrefetch(t *testing.T) {
	c := New(Options{})
	var calls int32
	Prefetch(c, "k", counting(&calls, "warm"))
	c.Wait()

	v, err := Fetch(context.Background(), c, "k", func(context.Context) (string, error) {
		return "cold", nil
	})
	if err != nil || v != "warm" {
		t.Errorf("Fetch after prefetch = %q, %v", v, err)
	}

	Prefetch(c, "k", counting(&calls, "warm"))
	c.Wait()
	if calls != 1 {
		t.Errorf("fresh key was prefetched again")
	}

	Prefetch(c, "bad", func(context.Context) (int, error) { return 0, errors.New("offline") })
	c.Wait()
	if c.Size() != 1 {
		t.Errorf("failed prefetch must not store anything, size = %d", c.Size())
	}
}

func TestCleanExpired(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)}
	c := newTestCache(clock)
	Fetch(context.Background(), c, "k", func(context.Context) (int, error) { return 1, nil })
	clock.Advance(9 * time.Minute)
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("cleaned %d before gc time", n)
	}
	clock.Advance(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("cleaned %d at gc time, want 1", n)
	}
}
