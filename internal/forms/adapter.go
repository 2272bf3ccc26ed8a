// Package forms turns failed mutations into what a form shows next: errors
// next to fields, or one general message above the form.
package forms

import (
	"errors"
	"net/http"

	"budgetcal/internal/api"
	"budgetcal/internal/core"
	"budgetcal/internal/messages"
)

// State is the error presentation of a form after a failed submission.
type State struct {
	FieldErrors map[string]string
	Message     string
	// ClearSensitive is set on every failure; password inputs are never
	// rendered back.
	ClearSensitive bool
}

// HasErrors reports whether anything should be shown.
func (s State) HasErrors() bool {
	return s.Message != "" || len(s.FieldErrors) > 0
}

// Field returns the error for a field, or "".
func (s State) Field(name string) string {
	return s.FieldErrors[name]
}

// Adapt decides how a failed mutation is presented:
//
//	400 with field metadata  -> field errors only
//	400 without metadata     -> general message for the reason code
//	401, 409, 500, any other -> general message for the reason code
//	local validation error   -> field error for the offending input
//	no response              -> the connection-failed message
//
// A nil err yields the zero State.
func Adapt(err error, catalog *messages.Catalog) State {
	if err == nil {
		return State{}
	}
	if catalog == nil {
		catalog = messages.Default()
	}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return State{
			FieldErrors:    map[string]string{verr.Field: catalog.Text(verr.Code)},
			ClearSensitive: true,
		}
	}

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return State{Message: catalog.Text(messages.CodeConnectionError), ClearSensitive: true}
	}

	if apiErr.Status == http.StatusBadRequest {
		if md := apiErr.Metadata(); len(md) > 0 {
			fields := make(map[string]string, len(md))
			for field, value := range md {
				fields[field] = fieldText(catalog, value)
			}
			return State{FieldErrors: fields, ClearSensitive: true}
		}
	}
	return State{Message: catalog.Text(apiErr.Reason()), ClearSensitive: true}
}

// fieldText translates metadata values that are reason codes and keeps
// backend prose as sent.
func fieldText(catalog *messages.Catalog, value string) string {
	if msg, ok := catalog.Lookup(value); ok {
		return msg
	}
	return value
}
