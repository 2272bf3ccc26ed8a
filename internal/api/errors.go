package api

import (
	"errors"
	"fmt"
)

// ErrBaseURLNotConfigured is returned by New when no API endpoint is set.
var ErrBaseURLNotConfigured = errors.New("api: base URL is not configured")

// Envelope is the error body returned by the budget API.
type Envelope struct {
	Error struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Status  string   `json:"status"`
		Details []Detail `json:"details"`
	} `json:"error"`
}

// Detail carries the machine-readable reason and optional field metadata.
type Detail struct {
	Type     string            `json:"type"`
	Reason   string            `json:"reason"`
	Domain   string            `json:"domain"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// APIError is a response with a non-2xx status.
type APIError struct {
	Status   int
	Envelope Envelope
}

func (e *APIError) Error() string {
	if reason := e.Reason(); reason != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, reason)
	}
	if e.Envelope.Error.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Envelope.Error.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

func (e *APIError) detail() *Detail {
	if len(e.Envelope.Error.Details) == 0 {
		return nil
	}
	return &e.Envelope.Error.Details[0]
}

// Reason returns the reason code of the first detail, if any.
func (e *APIError) Reason() string {
	if d := e.detail(); d != nil {
		return d.Reason
	}
	return ""
}

// Metadata returns the field metadata of the first detail, if any.
func (e *APIError) Metadata() map[string]string {
	if d := e.detail(); d != nil {
		return d.Metadata
	}
	return nil
}

// ConnectionError means no response was received.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "api: connection failed: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// *APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsConnectionError reports whether err means the backend could not be
// reached.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
