package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port         string
	CookieSecure bool
	TrustProxy   bool

	// Budget API
	APIEndpointURI string
	APITimeout     time.Duration

	// Caches
	AuthCacheTTL   time.Duration
	QueryStaleTime time.Duration
	QueryGCTime    time.Duration
	SessionTTL     time.Duration
	SessionMax     int

	RateLimitPerMinute int
	Locale             string

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),
		TrustProxy:   getEnvBool("TRUST_PROXY", false),

		APIEndpointURI: strings.TrimSpace(os.Getenv("API_ENDPOINT_URI")),
		APITimeout:     getEnvDuration("API_TIMEOUT", 10*time.Second),

		AuthCacheTTL:   getEnvDuration("AUTH_CACHE_TTL", 5*time.Minute),
		QueryStaleTime: getEnvDuration("QUERY_STALE_TIME", 5*time.Minute),
		QueryGCTime:    getEnvDuration("QUERY_GC_TIME", 10*time.Minute),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionMax:     getEnvInt("SESSION_MAX", 10000),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		Locale:             getEnv("LOCALE", "ja"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetcal"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.APIEndpointURI == "" {
		errors = append(errors, "API_ENDPOINT_URI is required")
	} else if u, err := url.Parse(c.APIEndpointURI); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API endpoint '%s': %v", c.APIEndpointURI, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API endpoint scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if c.APITimeout < 100*time.Millisecond || c.APITimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be between 100ms and 2m", c.APITimeout))
	}
	if c.AuthCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid auth cache TTL %v: must be positive", c.AuthCacheTTL))
	}
	if c.QueryStaleTime < 0 {
		errors = append(errors, fmt.Sprintf("invalid query stale time %v: must not be negative", c.QueryStaleTime))
	}
	if c.QueryGCTime < c.QueryStaleTime {
		errors = append(errors, fmt.Sprintf("invalid query gc time %v: must be at least the stale time %v", c.QueryGCTime, c.QueryStaleTime))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid session limit %d: must be at least 1", c.SessionMax))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	switch c.Locale {
	case "ja", "en":
	default:
		errors = append(errors, fmt.Sprintf("invalid locale '%s': must be 'ja' or 'en'", c.Locale))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// EventsEnabled reports whether mutation events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
