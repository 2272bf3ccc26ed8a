// Package auth holds the sign-in state cache and the route gate that runs
// before every page.
package auth

import (
	"sync"
	"time"
)

// DefaultTTL is how long a resolved auth state is trusted.
const DefaultTTL = 5 * time.Minute

// State is the resolved auth state of one browser session.
type State struct {
	IsSignedIn bool
	CSRFToken  string
	ExpiresAt  time.Time
}

// StateCache holds at most one State. An expired or invalidated state reads
// as absent, so the next consumer refetches.
type StateCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	state *State
}

// NewStateCache returns an empty cache. A non-positive ttl uses DefaultTTL.
func NewStateCache(ttl time.Duration) *StateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StateCache{ttl: ttl, now: time.Now}
}

// WithClock replaces the wall clock. Used by tests.
func (c *StateCache) WithClock(now func() time.Time) *StateCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns a copy of the cached state, or false when it is missing or
// expired.
func (c *StateCache) Get() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return State{}, false
	}
	if !c.now().Before(c.state.ExpiresAt) {
		c.state = nil
		return State{}, false
	}
	return *c.state, true
}

// Set stores a new state with a fresh expiry.
func (c *StateCache) Set(csrfToken string, isSignedIn bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = &State{
		IsSignedIn: isSignedIn,
		CSRFToken:  csrfToken,
		ExpiresAt:  c.now().Add(c.ttl),
	}
}

// Invalidate drops the cached state.
func (c *StateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = nil
}

// CSRFToken returns the cached token while the state is valid.
func (c *StateCache) CSRFToken() (string, bool) {
	s, ok := c.Get()
	if !ok || s.CSRFToken == "" {
		return "", false
	}
	return s.CSRFToken, true
}
