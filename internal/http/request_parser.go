// Form parsing turns posted values into core inputs. Each parser returns the
// first field it rejects as a *core.ValidationError so the form can show the
// message next to that field.

package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetcal/internal/core"
	"budgetcal/internal/messages"
)

// Form field names shared by the parsers and the templates.
const (
	fieldEmail       = "email"
	fieldPassword    = "password"
	fieldType        = "type"
	fieldAmount      = "amount"
	fieldCategoryID  = "category_id"
	fieldDate        = "date"
	fieldDescription = "description"
	fieldName        = "name"
	fieldColor       = "color"
	fieldMonth       = "month"
	fieldRedirect    = "redirect"
)

// formValue returns the sanitized, trimmed value of key.
func formValue(form url.Values, key string) string {
	return sanitizeInput(form.Get(key))
}

// echoValues copies the listed fields for rendering the form again. Password
// fields are never listed.
func echoValues(form url.Values, keys ...string) map[string]string {
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = formValue(form, k)
	}
	return values
}

func parseCredentials(form url.Values) (core.Credentials, error) {
	creds := core.Credentials{
		Email: formValue(form, fieldEmail),
		// Passwords are sent exactly as typed.
		Password: form.Get(fieldPassword),
	}
	return creds, creds.Validate()
}

// parseTransactionForm reads a transaction. The type is taken from the form
// and may be overridden by the caller once the category is known.
func parseTransactionForm(form url.Values) (core.TransactionInput, error) {
	in := core.TransactionInput{
		Type:        core.CategoryType(formValue(form, fieldType)),
		Description: formValue(form, fieldDescription),
	}

	categoryID, err := parseID(formValue(form, fieldCategoryID))
	if err != nil {
		return in, &core.ValidationError{Field: fieldCategoryID, Code: messages.LabelCategoryRequired}
	}
	in.CategoryID = categoryID

	amount, err := core.ParseAmount(formValue(form, fieldAmount))
	if err != nil {
		return in, &core.ValidationError{Field: fieldAmount, Code: messages.LabelAmountInvalid}
	}
	in.Amount = amount

	date, err := core.ParseDate(formValue(form, fieldDate))
	if err != nil {
		return in, &core.ValidationError{Field: fieldDate, Code: messages.CodeInvalidDate}
	}
	in.Date = date

	if !in.Type.Valid() {
		in.Type = core.Expense
	}
	return in, in.Validate()
}

// parseCategoryForm reads a category. withType is false for updates, which
// never change the type.
func parseCategoryForm(form url.Values, withType bool) (core.CategoryInput, error) {
	in := core.CategoryInput{
		Name:  formValue(form, fieldName),
		Color: formValue(form, fieldColor),
	}
	if withType {
		in.Type = core.CategoryType(formValue(form, fieldType))
		if !in.Type.Valid() {
			return in, &core.ValidationError{Field: fieldType, Code: messages.CodeInvalidTransactionType}
		}
	}
	return in, in.Validate()
}

// parseBudgetForm reads a budget. month is empty for updates.
func parseBudgetForm(form url.Values, month string) (core.BudgetInput, error) {
	in := core.BudgetInput{Month: month}

	categoryID, err := parseID(formValue(form, fieldCategoryID))
	if err != nil {
		return in, &core.ValidationError{Field: fieldCategoryID, Code: messages.LabelCategoryRequired}
	}
	in.CategoryID = categoryID

	amount, err := core.ParseAmount(formValue(form, fieldAmount))
	if err != nil {
		return in, &core.ValidationError{Field: fieldAmount, Code: messages.LabelAmountInvalid}
	}
	in.Amount = amount
	return in, in.Validate()
}

// parseID parses a positive resource id.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

// pathID reads the {id} wildcard of the matched route.
func pathID(r *http.Request) (int64, bool) {
	id, err := parseID(r.PathValue("id"))
	return id, err == nil
}

// formMonth reads the month a form was posted from, for redirecting back to
// it. Falls back to fallback when absent or malformed.
func formMonth(form url.Values, fallback core.Month) core.Month {
	if m, err := core.ParseMonth(formValue(form, fieldMonth)); err == nil {
		return m
	}
	return fallback
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// postForm parses the body of a form post. Malformed bodies yield an empty
// form, which the parsers then reject field by field.
func postForm(r *http.Request) url.Values {
	if err := r.ParseForm(); err != nil {
		return url.Values{}
	}
	return r.PostForm
}
