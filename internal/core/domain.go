package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

const (
	MaxDescriptionLength   = 255
	MaxCategoryNameLength  = 100
	MaxCategoryColorLength = 20
)

type (
	CategoryType string

	// Date is a calendar date with no meaningful time of day.
	Date struct {
		time.Time
	}

	Category struct {
		ID    int64        `json:"id"`
		Name  string       `json:"name"`
		Color string       `json:"color"`
		Type  CategoryType `json:"type"`
	}

	Transaction struct {
		ID          int64        `json:"id"`
		Type        CategoryType `json:"type"`
		Amount      int64        `json:"amount"`
		CategoryID  int64        `json:"category_id"`
		Category    Category     `json:"category"`
		Date        Date         `json:"date"`
		Description string       `json:"description,omitempty"`
	}

	Budget struct {
		ID         int64    `json:"id"`
		CategoryID int64    `json:"category_id"`
		Category   Category `json:"category"`
		Amount     int64    `json:"amount"`
		Month      string   `json:"month"`
	}
)

var (
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidCategoryType = errors.New("invalid category type")
	ErrDescriptionTooLong  = errors.New("description too long")
)

// Valid reports whether t is income or expense.
func (t CategoryType) Valid() bool {
	return t == Income || t == Expense
}

// Kind classifies the transaction. The denormalized category type wins over
// the transaction's own type; an empty result means the transaction cannot be
// classified.
func (t Transaction) Kind() CategoryType {
	if t.Category.Type.Valid() {
		return t.Category.Type
	}
	if t.Type.Valid() {
		return t.Type
	}
	return ""
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day from t, keeping its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses "2006-01-02". Longer ISO-8601 timestamps are truncated to
// their date part first.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == 'T' {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Key returns the date formatted as "2006-01-02".
func (d Date) Key() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) String() string {
	return d.Key()
}

// SameDay reports whether d and t fall on the same calendar date.
func (d Date) SameDay(t time.Time) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Key() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ValidationError reports an input field rejected before reaching the API.
// Code is a reason code understood by the message catalog.
type ValidationError struct {
	Field string
	Code  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%s)", e.Field, e.Code)
}

type (
	Credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	TransactionInput struct {
		Type        CategoryType `json:"type"`
		Amount      int64        `json:"amount"`
		CategoryID  int64        `json:"category_id"`
		Date        Date         `json:"date"`
		Description string       `json:"description,omitempty"`
	}

	CategoryInput struct {
		Name  string       `json:"name"`
		Color string       `json:"color"`
		Type  CategoryType `json:"type,omitempty"`
	}

	BudgetInput struct {
		CategoryID int64  `json:"category_id"`
		Amount     int64  `json:"amount"`
		Month      string `json:"month,omitempty"`
	}
)

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return &ValidationError{Field: "email", Code: "INVALID_EMAIL"}
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Code: "INVALID_PASSWORD"}
	}
	return nil
}

func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return &ValidationError{Field: "type", Code: "INVALID_TRANSACTION_TYPE"}
	}
	if in.CategoryID <= 0 {
		return &ValidationError{Field: "category_id", Code: "CATEGORY_NOT_FOUND"}
	}
	if in.Amount <= 0 {
		return &ValidationError{Field: "amount", Code: "INVALID_AMOUNT"}
	}
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Code: "INVALID_DATE"}
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Code: "VALIDATION_ERROR"}
	}
	return nil
}

// Validate checks a category for creation. Updates carry no type, since the
// type of an existing category never changes.
func (in CategoryInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return &ValidationError{Field: "name", Code: "INVALID_CATEGORY_NAME"}
	}
	if in.Color == "" || utf8.RuneCountInString(in.Color) > MaxCategoryColorLength {
		return &ValidationError{Field: "color", Code: "INVALID_CATEGORY_COLOR"}
	}
	if in.Type != "" && !in.Type.Valid() {
		return &ValidationError{Field: "type", Code: "INVALID_TRANSACTION_TYPE"}
	}
	return nil
}

func (in BudgetInput) Validate() error {
	if in.CategoryID <= 0 {
		return &ValidationError{Field: "category_id", Code: "CATEGORY_NOT_FOUND"}
	}
	if in.Amount <= 0 {
		return &ValidationError{Field: "amount", Code: "INVALID_BUDGET_AMOUNT"}
	}
	if in.Month != "" {
		if _, err := ParseMonth(in.Month); err != nil {
			return &ValidationError{Field: "month", Code: "INVALID_MONTH"}
		}
	}
	return nil
}
