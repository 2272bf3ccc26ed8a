// Package http serves the budget calendar. Pages are rendered on the server;
// every browser session reaches the budget API through its own client.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"golang.org/x/text/language"

	"budgetcal/internal/auth"
	"budgetcal/internal/events"
	"budgetcal/internal/log"
	"budgetcal/internal/messages"
	"budgetcal/internal/metrics"
	"budgetcal/internal/middleware/ratelimit"
	"budgetcal/internal/middleware/security"
	"budgetcal/internal/middleware/trace"
	"budgetcal/internal/session"
	appweb "budgetcal/web"
)

// Prober is checked by /readyz to confirm the budget API answers.
type Prober interface {
	GetCSRFToken(ctx context.Context) (string, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Sessions *session.Store
	Gate     *auth.Gate
	Events   *events.Emitter
	Metrics  *metrics.Metrics
	Logger   *log.Logger
	Probe    Prober

	// Locale is used when Accept-Language names no supported language.
	Locale              language.Tag
	RateLimitPerMinute  int
	TrustForwardedProto bool
	// Now replaces the wall clock, for tests.
	Now func() time.Time
}

type Server struct {
	http.Server

	sessions *session.Store
	gate     *auth.Gate
	events   *events.Emitter
	metrics  *metrics.Metrics
	probe    Prober
	locale   language.Tag
	now      func() time.Time

	pages    map[string]*template.Template
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger
	sl       *log.StructuredLogger
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer parses the templates and wires routes and middleware, returning
// a ready-to-run server.
func NewServer(addr string, d Deps) (*Server, error) {
	if d.Sessions == nil {
		return nil, errors.New("http: session store is required")
	}
	if d.Logger == nil {
		d.Logger = log.Discard()
	}
	if d.Gate == nil {
		d.Gate = auth.NewGate(auth.GateOptions{Logger: d.Logger})
	}
	if d.Events == nil {
		d.Events = events.NewEmitter(nil, d.Logger)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Locale == language.Und {
		d.Locale = language.Japanese
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	pages, err := parsePages(appweb.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := d.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		sessions: d.Sessions,
		gate:     d.Gate,
		events:   d.Events,
		metrics:  d.Metrics,
		probe:    d.Probe,
		locale:   d.Locale,
		now:      d.Now,
		pages:    pages,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: d.RateLimitPerMinute,
		}),
		detector: security.NewDetector(d.Logger, d.Metrics.Suspicious),
		logger:   logger,
		sl:       log.NewStructuredLogger(logger),
		started:  d.Now(),
	}

	headers := security.DefaultHeadersConfig()
	headers.TrustForwardedProto = d.TrustForwardedProto

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		return nil, err
	}

	var handler http.Handler = s.metrics.Middleware(mux)
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited, http.MethodPost)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = trace.NewMiddleware(d.Logger, s.detector.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.Handle("GET /{$}", s.page(s.handleTop))
	mux.Handle("GET "+auth.PathSignUp, s.page(s.handleSignUpForm))
	mux.Handle("POST "+auth.PathSignUp, s.page(s.handleSignUp))
	mux.Handle("GET "+auth.PathSignIn, s.page(s.handleSignInForm))
	mux.Handle("POST "+auth.PathSignIn, s.page(s.handleSignIn))
	mux.Handle("POST /sign_out", s.sessionOnly(s.handleSignOut))

	mux.Handle("GET "+auth.PathCalendar, s.page(s.handleCalendar))

	mux.Handle("GET "+auth.PathTx, s.page(s.handleTransactions))
	mux.Handle("POST "+auth.PathTx, s.page(s.handleCreateTransaction))
	mux.Handle("POST "+auth.PathTx+"/{id}", s.page(s.handleUpdateTransaction))
	mux.Handle("POST "+auth.PathTx+"/{id}/delete", s.page(s.handleDeleteTransaction))

	mux.Handle("GET "+auth.PathSettings, s.page(s.handleSettings))

	mux.Handle("GET "+auth.PathCategories, s.page(s.handleCategories))
	mux.Handle("POST "+auth.PathCategories, s.page(s.handleCreateCategory))
	mux.Handle("POST "+auth.PathCategories+"/{id}", s.page(s.handleUpdateCategory))
	mux.Handle("POST "+auth.PathCategories+"/{id}/delete", s.page(s.handleDeleteCategory))

	mux.Handle("GET "+auth.PathBudget, s.page(s.handleBudgets))
	mux.Handle("POST "+auth.PathBudget, s.page(s.handleCreateBudget))
	mux.Handle("POST "+auth.PathBudget+"/{id}", s.page(s.handleUpdateBudget))
	mux.Handle("POST "+auth.PathBudget+"/{id}/delete", s.page(s.handleDeleteBudget))

	// Everything else still passes the gate, so signed-out visitors are sent
	// to sign in before learning whether a path exists.
	mux.Handle("/", s.page(s.handleNotFound))
	return nil
}

// page wraps a handler with the session, the form token check and the auth
// gate. The gate publishes the auth state before the handler runs.
func (s *Server) page(h http.HandlerFunc) http.Handler {
	var handler http.Handler = security.NoStoreMiddleware(h)
	handler = s.gate.Middleware(s.authLookup, s.renderUndetermined)(handler)
	handler = session.RequireFormToken(http.HandlerFunc(s.rejectForm))(handler)
	return s.sessions.Middleware(handler)
}

// sessionOnly is page without the gate, for actions valid in any state.
func (s *Server) sessionOnly(h http.HandlerFunc) http.Handler {
	var handler http.Handler = security.NoStoreMiddleware(h)
	handler = session.RequireFormToken(http.HandlerFunc(s.rejectForm))(handler)
	return s.sessions.Middleware(handler)
}

func (s *Server) authLookup(r *http.Request) (*auth.StateCache, auth.Resolver, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return nil, nil, false
	}
	return sess.Auth, sess.API, true
}

// Shutdown stops background work and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).String(),
	})
}

// handleReady checks the templates and that the budget API answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if len(s.pages) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.probe == nil:
		checks["budget_api"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if _, err := s.probe.GetCSRFToken(ctx); err != nil {
			checks["budget_api"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["budget_api"] = "ok"
		}
	}

	checks["sessions"] = fmt.Sprintf("%d active", s.sessions.Size())
	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	s.renderError(w, r, http.StatusTooManyRequests, s.catalog(r).Text(messages.NoticeTooManyRequests))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
