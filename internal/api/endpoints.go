package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"budgetcal/internal/core"
)

type (
	csrfResponse struct {
		CSRFToken string `json:"csrfToken"`
	}

	signedInResponse struct {
		IsSignedIn bool `json:"is_signed_in"`
	}

	transactionsResponse struct {
		Transactions []core.Transaction `json:"transactions"`
	}

	budgetsResponse struct {
		Budgets []core.Budget `json:"budgets"`
	}

	categoriesResponse struct {
		Categories []core.Category `json:"categories"`
	}
)

// GetCSRFToken fetches a fresh CSRF token.
func (c *Client) GetCSRFToken(ctx context.Context) (string, error) {
	var out csrfResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/csrf"}, &out); err != nil {
		return "", err
	}
	return out.CSRFToken, nil
}

// CheckSignedIn asks whether the session cookie belongs to a signed-in user.
// A 401 is a valid "not signed in" answer, not an error.
func (c *Client) CheckSignedIn(ctx context.Context, csrfToken string) (bool, error) {
	var out signedInResponse
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/users/check-signed-in",
		Header: http.Header{HeaderCSRFToken: {csrfToken}},
	}, &out)
	if StatusOf(err) == http.StatusUnauthorized {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.IsSignedIn, nil
}

func (c *Client) SignUp(ctx context.Context, in core.Credentials) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/users/sign-up", Body: in}, nil)
}

func (c *Client) SignIn(ctx context.Context, in core.Credentials) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/users/sign-in", Body: in}, nil)
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/users/sign-out"}, nil)
}

// ListTransactions returns transactions dated between start and end,
// inclusive.
func (c *Client) ListTransactions(ctx context.Context, start, end core.Date) ([]core.Transaction, error) {
	var out transactionsResponse
	err := c.Do(ctx, Request{
		Path:  "/transactions",
		Query: TransactionsQuery(start, end),
	}, &out)
	return out.Transactions, err
}

func (c *Client) CreateTransaction(ctx context.Context, in core.TransactionInput) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/transactions", Body: in}, nil)
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: "/transactions/" + strconv.FormatInt(id, 10), Body: in}, nil)
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: "/transactions/" + strconv.FormatInt(id, 10)}, nil)
}

// ListBudgets returns the budgets of one month.
func (c *Client) ListBudgets(ctx context.Context, month core.Month) ([]core.Budget, error) {
	var out budgetsResponse
	err := c.Do(ctx, Request{
		Path:  "/budgets",
		Query: BudgetsQuery(month),
	}, &out)
	return out.Budgets, err
}

func (c *Client) CreateBudget(ctx context.Context, in core.BudgetInput) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/budgets", Body: in}, nil)
}

// UpdateBudget changes the category and amount of a budget. The month of an
// existing budget is never sent.
func (c *Client) UpdateBudget(ctx context.Context, id int64, in core.BudgetInput) error {
	in.Month = ""
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: "/budgets/" + strconv.FormatInt(id, 10), Body: in}, nil)
}

func (c *Client) DeleteBudget(ctx context.Context, id int64) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: "/budgets/" + strconv.FormatInt(id, 10)}, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var out categoriesResponse
	err := c.Do(ctx, Request{Path: "/categories"}, &out)
	return out.Categories, err
}

func (c *Client) CreateCategory(ctx context.Context, in core.CategoryInput) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/categories", Body: in}, nil)
}

// UpdateCategory renames or recolors a category. The type is never sent.
func (c *Client) UpdateCategory(ctx context.Context, id int64, in core.CategoryInput) error {
	in.Type = ""
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: "/categories/" + strconv.FormatInt(id, 10), Body: in}, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: "/categories/" + strconv.FormatInt(id, 10)}, nil)
}

// TransactionsQuery is the query string of a transactions range.
func TransactionsQuery(start, end core.Date) url.Values {
	return url.Values{
		"start_date": {start.Key()},
		"end_date":   {end.Key()},
	}
}

// BudgetsQuery is the query string of a budget month.
func BudgetsQuery(month core.Month) url.Values {
	return url.Values{"month": {month.String()}}
}
