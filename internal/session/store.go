package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"budgetcal/internal/api"
	"budgetcal/internal/auth"
	"budgetcal/internal/cache"
	"budgetcal/internal/log"
	"budgetcal/internal/query"
)

const (
	DefaultCookieName = "budgetcal_session"
	DefaultTTL        = 24 * time.Hour
	DefaultMaxSize    = 10000
)

// ErrNotFound means the request carries no live session.
var ErrNotFound = errors.New("session: not found")

// Options configures a Store.
type Options struct {
	CookieName   string
	CookieSecure bool
	// TTL is the idle lifetime; every use of a session extends it.
	TTL     time.Duration
	MaxSize int

	API     api.Options
	AuthTTL time.Duration
	Query   query.Options

	Logger *log.Logger
	Now    func() time.Time
}

// Store holds every live session in memory. Sessions are lost on restart,
// which only costs users a new sign-in.
type Store struct {
	opts     Options
	sessions *cache.LRUCache[*Session]
	logger   *log.Logger
}

// NewStore validates the API options up front so a missing endpoint fails at
// startup rather than on the first visitor.
func NewStore(opts Options) (*Store, error) {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.AuthTTL <= 0 {
		opts.AuthTTL = auth.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if _, err := api.New(opts.API, nil); err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	logger := opts.Logger.WithComponent(log.ComponentSession)
	sessions := cache.NewLRUCache[*Session](opts.MaxSize, opts.TTL).WithClock(opts.Now)
	sessions.OnEvict(func(id string, _ *Session) {
		logger.Debug("Session ended", log.FieldSessionID, shortID(id))
	})
	return &Store{opts: opts, sessions: sessions, logger: logger}, nil
}

// Lookup returns the session named by the request cookie and extends its
// lifetime.
func (s *Store) Lookup(r *http.Request) (*Session, error) {
	c, err := r.Cookie(s.opts.CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNotFound
	}
	sess, ok := s.sessions.Get(c.Value)
	if !ok {
		return nil, ErrNotFound
	}
	s.sessions.Touch(c.Value)
	return sess, nil
}

// Load returns the request's session, starting a new one (and setting its
// cookie) when there is none.
func (s *Store) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if sess, err := s.Lookup(r); err == nil {
		return sess, nil
	}
	sess, err := s.create()
	if err != nil {
		return nil, err
	}
	s.setCookie(w, sess.ID)
	return sess, nil
}

// Rotate moves sess to a fresh id, keeping its state. Called after sign-in
// so an id seen before authentication is worthless afterwards.
func (s *Store) Rotate(w http.ResponseWriter, sess *Session) {
	old := sess.ID
	sess.ID = uuid.NewString()
	s.sessions.Set(sess.ID, sess)
	s.sessions.Delete(old)
	s.setCookie(w, sess.ID)
}

// Destroy ends the request's session and expires its cookie.
func (s *Store) Destroy(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		s.sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CleanExpired drops idle sessions.
func (s *Store) CleanExpired() int {
	return s.sessions.CleanExpired()
}

func (s *Store) Size() int {
	return s.sessions.Size()
}

func (s *Store) create() (*Session, error) {
	authCache := auth.NewStateCache(s.opts.AuthTTL).WithClock(s.opts.Now)
	apiOpts := s.opts.API
	if apiOpts.Logger == nil {
		apiOpts.Logger = s.opts.Logger.WithComponent(log.ComponentAPI)
	}
	client, err := api.New(apiOpts, authCache)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	queryOpts := s.opts.Query
	if queryOpts.Logger == nil {
		queryOpts.Logger = s.opts.Logger
	}
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: s.opts.Now(),
		API:       client,
		Auth:      authCache,
		Queries:   query.NewLoader(query.New(queryOpts), client),
	}
	s.sessions.Set(sess.ID, sess)
	s.logger.Debug("Session started", log.FieldSessionID, shortID(sess.ID))
	return sess, nil
}

func (s *Store) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.opts.TTL / time.Second),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// shortID keeps session ids out of logs while still telling them apart.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type contextKey struct{}

// WithSession returns ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

// Middleware loads or starts the session of every request.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Load(w, r)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Failed to start session", log.FieldError, err.Error())
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireFormToken hands state-changing requests whose form token does not
// match the session's to onReject, which must answer 403. A nil onReject
// writes a plain 403.
func RequireFormToken(onReject http.Handler) func(http.Handler) http.Handler {
	if onReject == nil {
		onReject = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			sess, ok := FromContext(r.Context())
			if !ok || !sess.CheckFormToken(r.PostFormValue(FormTokenField)) {
				onReject.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
