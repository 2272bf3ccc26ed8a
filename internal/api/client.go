// Package api is the HTTP client for the budget API.
//
// Every backend call goes through Client.Do, which attaches the cached CSRF
// token, normalizes JSON date-times to dates, keeps the session cookie in a
// per-client jar and turns failures into *APIError or *ConnectionError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"budgetcal/internal/log"
)

const (
	HeaderCSRFToken = "X-CSRF-Token"

	maxResponseBytes = 4 << 20
)

// TokenStore is the auth state cache as seen by the client.
type TokenStore interface {
	CSRFToken() (string, bool)
	Invalidate()
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *log.Logger

	// Observe, when set, is called after every round trip. Status is 0 when
	// no response was received.
	Observe func(method, endpoint string, status int, elapsed time.Duration)
}

// Client talks to the budget API on behalf of one browser session.
type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  TokenStore
	logger  *log.Logger
	observe func(method, endpoint string, status int, elapsed time.Duration)
}

// New returns a client with its own cookie jar. tokens may be nil.
func New(opts Options, tokens TokenStore) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, ErrBaseURLNotConfigured
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse base URL: unsupported scheme %q", base.Scheme)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentAPI)
	}
	return &Client{
		base: base,
		http: &http.Client{
			Jar:       jar,
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		tokens:  tokens,
		logger:  logger,
		observe: opts.Observe,
	}, nil
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is encoded as JSON when non-nil.
	Body any
}

// Do sends req and decodes a successful JSON response into out (which may be
// nil). A 204 response is never decoded.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	target := c.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(NormalizeDates(raw))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, req.Path, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get(HeaderCSRFToken) == "" && c.tokens != nil {
		if token, ok := c.tokens.CSRFToken(); ok && token != "" {
			httpReq.Header.Set(HeaderCSRFToken, token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.record(method, req.Path, 0, elapsed)
		c.logger.WarnContext(ctx, "Budget API unreachable",
			log.FieldMethod, method,
			log.FieldPath, req.Path,
			log.FieldError, err.Error())
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()
	c.record(method, req.Path, resp.StatusCode, elapsed)

	c.logger.DebugContext(ctx, "Budget API call",
		log.FieldMethod, method,
		log.FieldPath, req.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, elapsed.Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		c.tokens.Invalidate()
		c.logger.InfoContext(ctx, "Auth state invalidated after 401", log.FieldPath, req.Path)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ConnectionError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if len(bytes.TrimSpace(payload)) > 0 {
			// A body that is not an envelope still yields a usable status.
			_ = json.Unmarshal(payload, &apiErr.Envelope)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, req.Path, err)
	}
	return nil
}

func (c *Client) record(method, path string, status int, elapsed time.Duration) {
	if c.observe != nil {
		c.observe(method, endpointLabel(path), status, elapsed)
	}
}

// endpointLabel collapses numeric path segments so metrics stay low
// cardinality: /transactions/12 -> /transactions/:id.
func endpointLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		numeric := true
		for _, r := range p {
			if r < '0' || r > '9' {
				numeric = false
				break
			}
		}
		if numeric {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
