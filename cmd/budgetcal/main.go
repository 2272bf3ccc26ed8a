package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/text/language"

	"budgetcal/internal/api"
	"budgetcal/internal/auth"
	"budgetcal/internal/cache"
	"budgetcal/internal/cli"
	"budgetcal/internal/events"
	apphttp "budgetcal/internal/http"
	"budgetcal/internal/log"
	"budgetcal/internal/metrics"
	"budgetcal/internal/query"
	"budgetcal/internal/session"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		// The logger is not configured yet.
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, os.Stdout)
	m := metrics.New()

	apiOpts := api.Options{
		BaseURL: cfg.APIEndpointURI,
		Timeout: cfg.APITimeout,
		Logger:  logger,
		Observe: m.ObserveAPI,
	}
	sessions, err := session.NewStore(session.Options{
		CookieSecure: cfg.CookieSecure,
		TTL:          cfg.SessionTTL,
		MaxSize:      cfg.SessionMax,
		API:          apiOpts,
		AuthTTL:      cfg.AuthCacheTTL,
		Query: query.Options{
			StaleTime:    cfg.QueryStaleTime,
			GCTime:       cfg.QueryGCTime,
			FetchTimeout: cfg.APITimeout,
			OnLookup:     m.QueryCacheLookup,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("Failed to initialize session store", log.FieldError, err.Error())
		os.Exit(1)
	}
	m.GaugeFunc("sessions_active", "Number of live browser sessions.", func() float64 {
		return float64(sessions.Size())
	})

	// Probe client for readiness checks; it shares no cookies with visitors.
	probe, err := api.New(apiOpts, nil)
	if err != nil {
		logger.Error("Failed to initialize API client", log.FieldError, err.Error())
		os.Exit(1)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.EventsEnabled() {
		client := events.NewClient(events.Options{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Logger:   logger,
			Observe:  m.EventPublished,
		})
		connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := client.Connect(connectCtx, 3); err != nil {
			// Publishing reconnects on demand; events are best effort.
			logger.Warn("AMQP unavailable at startup", log.FieldError, err.Error())
		}
		cancel()
		publisher = client
		logger.Info("Mutation events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Mutation events disabled - no AMQP_URL provided")
	}
	emitter := events.NewEmitter(publisher, logger)

	cleaner := cache.NewManager(logger)
	cleaner.Register(cache.CleanerFunc(sessions.CleanExpired))
	cleaner.StartCleanup(5 * time.Minute)

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		locale = language.Japanese
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sessions: sessions,
		Gate: auth.NewGate(auth.GateOptions{
			Logger:        logger,
			OnCacheLookup: m.AuthCacheLookup,
		}),
		Events:              emitter,
		Metrics:             m,
		Logger:              logger,
		Probe:               probe,
		Locale:              locale,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
		TrustForwardedProto: cfg.TrustProxy,
	})
	if err != nil {
		logger.Error("Failed to initialize HTTP server", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cleaner.Stop()
		if err := emitter.Close(); err != nil {
			logger.Warn("Event publisher close error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting budgetcal server",
		"port", cfg.Port,
		"api_endpoint", cfg.APIEndpointURI,
		"locale", locale.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
