// Package session keeps the server-side state of each browser: its API
// client and cookie jar, its auth state cache, its query cache, a pending
// flash message and the token every form must echo.
package session

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetcal/internal/api"
	"budgetcal/internal/auth"
	"budgetcal/internal/query"
)

// FormTokenField is the hidden input carrying the form token.
const FormTokenField = "_token"

// FlashKind selects how a flash message is styled.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot message shown on the next page.
type Flash struct {
	Kind FlashKind
	Text string
}

// Session is the state of one browser.
type Session struct {
	ID        string
	CreatedAt time.Time

	API     *api.Client
	Auth    *auth.StateCache
	Queries *query.Loader

	mu        sync.Mutex
	flash     *Flash
	formToken string
}

// SetFlash replaces any pending flash.
func (s *Session) SetFlash(kind FlashKind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = &Flash{Kind: kind, Text: text}
}

// PopFlash returns the pending flash and clears it.
func (s *Session) PopFlash() (Flash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flash == nil {
		return Flash{}, false
	}
	f := *s.flash
	s.flash = nil
	return f, true
}

// FormToken returns the session's form token, creating it on first use.
func (s *Session) FormToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formToken == "" {
		s.formToken = uuid.NewString()
	}
	return s.formToken
}

// CheckFormToken reports whether token matches the session's form token.
func (s *Session) CheckFormToken(token string) bool {
	s.mu.Lock()
	want := s.formToken
	s.mu.Unlock()
	if want == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}

// Reset forgets everything learned about the signed-in user: auth state,
// cached queries and the form token. The cookie jar is kept so the backend
// can still see its own session cookie being cleared.
func (s *Session) Reset() {
	s.Auth.Invalidate()
	s.Queries.Cache().Clear()
	s.mu.Lock()
	s.formToken = ""
	s.mu.Unlock()
}
