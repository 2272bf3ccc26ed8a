package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"budgetcal/internal/log"
)

// ErrUndetermined means the sign-in state could not be resolved, e.g. the
// backend was unreachable. It never means "signed out".
var ErrUndetermined = errors.New("auth: sign-in state could not be determined")

// Resolver is the part of the budget API the gate needs.
type Resolver interface {
	GetCSRFToken(ctx context.Context) (string, error)
	CheckSignedIn(ctx context.Context, csrfToken string) (bool, error)
}

// Context is the auth state published to page handlers.
type Context struct {
	IsSignedIn bool
	CSRFToken  string
}

type contextKey struct{}

// WithContext stores ac in ctx.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the auth state published by the gate.
func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

// GateOptions configures a Gate.
type GateOptions struct {
	Routes Routes
	Logger *log.Logger
	// OnCacheLookup, when set, is told whether each resolution hit the cache.
	OnCacheLookup func(hit bool)
}

// Gate decides, before a page renders, whether the visitor may see it.
type Gate struct {
	routes   Routes
	logger   *log.Logger
	sl       *log.StructuredLogger
	onLookup func(hit bool)
}

func NewGate(opts GateOptions) *Gate {
	routes := opts.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentAuth)
	return &Gate{
		routes:   routes,
		logger:   logger,
		sl:       log.NewStructuredLogger(logger),
		onLookup: opts.OnCacheLookup,
	}
}

// Resolve returns the cached state, or fetches a CSRF token, checks the
// sign-in state with it and caches the result.
func (g *Gate) Resolve(ctx context.Context, cache *StateCache, backend Resolver) (Context, error) {
	if s, ok := cache.Get(); ok {
		g.lookup(true)
		return Context{IsSignedIn: s.IsSignedIn, CSRFToken: s.CSRFToken}, nil
	}
	g.lookup(false)

	token, err := backend.GetCSRFToken(ctx)
	if err != nil {
		return Context{}, fmt.Errorf("%w: fetch csrf token: %w", ErrUndetermined, err)
	}
	signedIn, err := backend.CheckSignedIn(ctx, token)
	if err != nil {
		return Context{}, fmt.Errorf("%w: check signed in: %w", ErrUndetermined, err)
	}
	cache.Set(token, signedIn)
	return Context{IsSignedIn: signedIn, CSRFToken: token}, nil
}

func (g *Gate) lookup(hit bool) {
	if g.onLookup != nil {
		g.onLookup(hit)
	}
}

// Decide returns where a visitor to u must be sent, or "" to render the
// page.
func (g *Gate) Decide(u *url.URL, signedIn bool) string {
	route, declared := g.routes.Lookup(u.Path)
	switch {
	case declared && route.RedirectIfAuthenticated && signedIn:
		return PathCalendar
	case declared && route.RequiresAuth && !signedIn:
		return SignInURL(u.RequestURI())
	case !declared && !signedIn:
		return SignInURL(u.RequestURI())
	}
	return ""
}

// Lookup finds the per-session cache and backend of a request.
type Lookup func(r *http.Request) (*StateCache, Resolver, bool)

// Middleware runs the gate for every request it wraps. The resolved state
// is always published to the request context, even when redirecting. When
// the state cannot be resolved, onUndetermined renders the response.
func (g *Gate) Middleware(lookup Lookup, onUndetermined func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cache, backend, ok := lookup(r)
			if !ok {
				onUndetermined(w, r, fmt.Errorf("%w: no session", ErrUndetermined))
				return
			}

			ac, err := g.Resolve(r.Context(), cache, backend)
			if err != nil {
				g.logger.WarnContext(r.Context(), "Auth state unresolved",
					log.FieldPath, r.URL.Path,
					log.FieldError, err.Error())
				onUndetermined(w, r, err)
				return
			}

			r = r.WithContext(WithContext(r.Context(), ac))
			target := g.Decide(r.URL, ac.IsSignedIn)
			g.sl.LogAuthDecision(r.Context(), r.URL.Path, ac.IsSignedIn, target)
			if target != "" {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
