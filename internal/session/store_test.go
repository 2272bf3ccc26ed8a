package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"budgetcal/internal/api"
	"budgetcal/internal/log"
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

func newTestStore(t *testing.T, clock *testClock) *Store {
	t.Helper()
	opts := Options{
		TTL:    time.Hour,
		API:    api.Options{BaseURL: "http://api.test"},
		Logger: log.Discard(),
	}
	if clock != nil {
		opts.Now = clock.Now
	}
	s, err := NewStore(opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestNewStoreRequiresBaseURL(t *testing.T) {
	_, err := NewStore(Options{})
	if !errors.Is(err, api.ErrBaseURLNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadStartsAndResumesSessions(t *testing.T) {
	s := newTestStore(t, nil)

	rr := httptest.NewRecorder()
	first, err := s.Load(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	c := sessionCookie(t, rr)
	if c.Value != first.ID || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie = %+v", c)
	}
	if first.API == nil || first.Auth == nil || first.Queries == nil {
		t.Fatal("session is missing its clients")
	}

	req := httptest.NewRequest(http.MethodGet, "/calendar", nil)
	req.AddCookie(c)
	rr = httptest.NewRecorder()
	again, err := s.Load(rr, req)
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Error("expected the same session")
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Error("resumed session must not reset the cookie")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestStore(t, nil)
	a, _ := s.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	b, _ := s.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if a.ID == b.ID || a.Auth == b.Auth || a.API == b.API {
		t.Fatal("sessions share state")
	}
	a.Auth.Set("tok", true)
	if _, ok := b.Auth.Get(); ok {
		t.Error("auth state leaked across sessions")
	}
}

func TestUnknownCookieStartsNewSession(t *testing.T) {
	s := newTestStore(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged"})
	if _, err := s.Lookup(req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	rr := httptest.NewRecorder()
	sess, err := s.Load(rr, req)
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "forged" {
		t.Error("client-chosen ids must not be adopted")
	}
}

func TestSessionExpiryIsSliding(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)}
	s := newTestStore(t, clock)
	rr := httptest.NewRecorder()
	s.Load(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	c := sessionCookie(t, rr)

	lookup := func() error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		_, err := s.Lookup(req)
		return err
	}

	clock.Advance(50 * time.Minute)
	if err := lookup(); err != nil {
		t.Fatal(err)
	}
	clock.Advance(50 * time.Minute)
	if err := lookup(); err != nil {
		t.Fatal("use should have extended the session")
	}
	clock.Advance(time.Hour)
	if err := lookup(); !errors.Is(err, ErrNotFound) {
		t.Errorf("idle session should expire, err = %v", err)
	}
}

func TestRotateAndDestroy(t *testing.T) {
	s := newTestStore(t, nil)
	rr := httptest.NewRecorder()
	sess, _ := s.Load(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	old := sessionCookie(t, rr)

	rr = httptest.NewRecorder()
	s.Rotate(rr, sess)
	fresh := sessionCookie(t, rr)
	if fresh.Value == old.Value || fresh.Value != sess.ID {
		t.Fatalf("rotate: old %q fresh %q id %q", old.Value, fresh.Value, sess.ID)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(old)
	if _, err := s.Lookup(req); !errors.Is(err, ErrNotFound) {
		t.Error("old id must stop working")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(fresh)
	rr = httptest.NewRecorder()
	s.Destroy(rr, req)
	if c := sessionCookie(t, rr); c.MaxAge >= 0 {
		t.Errorf("cookie not expired: %+v", c)
	}
	if s.Size() != 0 {
		t.Errorf("size = %d", s.Size())
	}
}

func TestFlash(t *testing.T) {
	s := newTestStore(t, nil)
	sess, _ := s.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if _, ok := sess.PopFlash(); ok {
		t.Fatal("no flash expected")
	}
	sess.SetFlash(FlashSuccess, "ログインしました")
	f, ok := sess.PopFlash()
	if !ok || f.Text != "ログインしました" || f.Kind != FlashSuccess {
		t.Fatalf("flash = %+v %v", f, ok)
	}
	if _, ok := sess.PopFlash(); ok {
		t.Error("flash must be shown once")
	}
}

func TestRequireFormToken(t *testing.T) {
	s := newTestStore(t, nil)
	var handled bool
	h := s.Middleware(RequireFormToken(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled = true
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !handled {
		t.Fatal("GET must pass")
	}
	c := sessionCookie(t, rr)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	sess, _ := s.Lookup(req)
	token := sess.FormToken()

	post := func(token string) int {
		handled = false
		form := url.Values{FormTokenField: {token}}
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(c)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post("wrong"); code != http.StatusForbidden || handled {
		t.Errorf("wrong token: code %d handled %v", code, handled)
	}
	if code := post(""); code != http.StatusForbidden || handled {
		t.Errorf("missing token: code %d handled %v", code, handled)
	}
	if code := post(token); code != http.StatusOK || !handled {
		t.Errorf("valid token: code %d handled %v", code, handled)
	}
}

func TestResetForgetsUser(t *testing.T) {
	s := newTestStore(t, nil)
	sess, _ := s.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	sess.Auth.Set("tok", true)
	token := sess.FormToken()

	sess.Reset()
	if _, ok := sess.Auth.Get(); ok {
		t.Error("auth state must be invalidated")
	}
	if sess.CheckFormToken(token) {
		t.Error("old form token must stop working")
	}
}
