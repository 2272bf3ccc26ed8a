package cache

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
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

func TestLRUCacheBasicOperations(t *testing.T) {
	c := NewLRUCache[string](3, time.Minute)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("overwrite failed: %q", v)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d", c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}
	c.Delete("missing")
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)
	var evicted []string
	c.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a")
	c.Set("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should be present", k)
		}
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v", evicted)
	}
}

func TestLRUCacheUnbounded(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprint(i), i)
	}
	if c.Size() != 100 {
		t.Errorf("size = %d", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	clock := newTestClock()
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.Now)

	c.Set("k", "v")
	clock.Advance(time.Minute - time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected present before ttl")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired at ttl")
	}
	if c.Size() != 0 {
		t.Error("expired entry should be removed on read")
	}
}

func TestLRUCacheTouch(t *testing.T) {
	clock := newTestClock()
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.Now)

	c.Set("k", "v")
	clock.Advance(50 * time.Second)
	if !c.Touch("k") {
		t.Fatal("touch on live key should succeed")
	}
	clock.Advance(50 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("touch should extend the lifetime")
	}
	clock.Advance(time.Minute)
	if c.Touch("k") {
		t.Error("touch on expired key should fail")
	}
	if c.Touch("missing") {
		t.Error("touch on missing key should fail")
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("transactions?start_date=2024-05-26", 1)
	c.Set("transactions?start_date=2024-06-30", 2)
	c.Set("budgets?month=2024-06", 3)
	c.Set("categories", 4)

	if n := c.DeletePrefix("transactions"); n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	var keys []string
	for _, k := range []string{"budgets?month=2024-06", "categories"} {
		if _, ok := c.Get(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) != 2 {
		t.Errorf("unrelated keys removed, left %v", keys)
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("size after clear = %d", c.Size())
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	clock := newTestClock()
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.Now)
	c.Set("old", 1)
	clock.Advance(30 * time.Second)
	c.Set("new", 2)
	clock.Advance(30 * time.Second)

	if n := c.CleanExpired(); n != 1 {
		t.Errorf("cleaned %d, want 1", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("live entry removed")
	}
}

func TestLRUCacheConcurrentAccess(t *testing.T) {
	c := NewLRUCache[int](50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i%20)
				c.Set(key, i)
				c.Get(key)
				if i%50 == 0 {
					c.DeletePrefix(fmt.Sprintf("%d-", g))
				}
			}
		}(g)
	}
	wg.Wait()
	if c.Size() > 50 {
		t.Errorf("size %d exceeds bound", c.Size())
	}
}

func TestManagerSweep(t *testing.T) {
	clock := newTestClock()
	a := NewLRUCache[int](10, time.Minute).WithClock(clock.Now)
	b := NewLRUCache[int](10, time.Hour).WithClock(clock.Now)
	a.Set("x", 1)
	b.Set("y", 2)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	m.Register(CleanerFunc(func() int { return 3 }))

	clock.Advance(2 * time.Minute)
	if n := m.Sweep(); n != 4 {
		t.Errorf("swept %d, want 4", n)
	}
	if b.Size() != 1 {
		t.Error("unexpired cache was cleaned")
	}
}

func TestManagerStop(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
	m.Stop()

	m = NewManager(nil)
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
}
