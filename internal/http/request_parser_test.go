package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"budgetcal/internal/core"
	"budgetcal/internal/messages"
)

func TestParseTransactionForm(t *testing.T) {
	valid := url.Values{
		fieldType:        {"income"},
		fieldAmount:      {"12,500"},
		fieldCategoryID:  {"3"},
		fieldDate:        {"2024-06-15"},
		fieldDescription: {"  給料 "},
	}

	in, err := parseTransactionForm(valid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Type != core.Income || in.Amount != 12500 || in.CategoryID != 3 {
		t.Errorf("got %+v", in)
	}
	if in.Date.Key() != "2024-06-15" {
		t.Errorf("date = %q", in.Date.Key())
	}
	if in.Description != "給料" {
		t.Errorf("description = %q, want trimmed", in.Description)
	}

	tests := []struct {
		name      string
		change    func(url.Values)
		wantField string
		wantCode  string
	}{
		{
			name:      "missing category",
			change:    func(v url.Values) { v.Del(fieldCategoryID) },
			wantField: fieldCategoryID,
			wantCode:  messages.LabelCategoryRequired,
		},
		{
			name:      "zero amount",
			change:    func(v url.Values) { v.Set(fieldAmount, "0") },
			wantField: fieldAmount,
			wantCode:  messages.LabelAmountInvalid,
		},
		{
			name:      "decimal amount",
			change:    func(v url.Values) { v.Set(fieldAmount, "1.5") },
			wantField: fieldAmount,
			wantCode:  messages.LabelAmountInvalid,
		},
		{
			name:      "bad date",
			change:    func(v url.Values) { v.Set(fieldDate, "2024/06/15") },
			wantField: fieldDate,
			wantCode:  messages.CodeInvalidDate,
		},
		{
			name:      "description too long",
			change:    func(v url.Values) { v.Set(fieldDescription, strings.Repeat("あ", core.MaxDescriptionLength+1)) },
			wantField: "description",
			wantCode:  messages.CodeValidationError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			for k, v := range valid {
				form[k] = append([]string(nil), v...)
			}
			tt.change(form)

			_, err := parseTransactionForm(form)
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tt.wantField || verr.Code != tt.wantCode {
				t.Errorf("got %s/%s, want %s/%s", verr.Field, verr.Code, tt.wantField, tt.wantCode)
			}
		})
	}
}

func TestParseTransactionFormDefaultsToExpense(t *testing.T) {
	in, err := parseTransactionForm(url.Values{
		fieldAmount:     {"800"},
		fieldCategoryID: {"1"},
		fieldDate:       {"2024-06-01"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Type != core.Expense {
		t.Errorf("type = %q, want expense", in.Type)
	}
}

func TestParseCategoryForm(t *testing.T) {
	form := url.Values{fieldName: {"食費"}, fieldColor: {"#ff0000"}, fieldType: {"expense"}}

	in, err := parseCategoryForm(form, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Type != core.Expense {
		t.Errorf("type = %q", in.Type)
	}

	// Updates never carry the type, even when the form posts one.
	in, err = parseCategoryForm(form, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Type != "" {
		t.Errorf("update type = %q, want empty", in.Type)
	}

	bad := url.Values{fieldName: {"食費"}, fieldColor: {"#ff0000"}, fieldType: {"other"}}
	var verr *core.ValidationError
	if _, err := parseCategoryForm(bad, true); !errors.As(err, &verr) || verr.Field != fieldType {
		t.Errorf("expected type error, got %v", err)
	}

	long := url.Values{fieldName: {strings.Repeat("x", core.MaxCategoryNameLength+1)}, fieldColor: {"red"}}
	if _, err := parseCategoryForm(long, false); !errors.As(err, &verr) || verr.Field != fieldName {
		t.Errorf("expected name error, got %v", err)
	}
}

func TestParseBudgetForm(t *testing.T) {
	in, err := parseBudgetForm(url.Values{fieldCategoryID: {"2"}, fieldAmount: {"30,000"}}, "2024-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.CategoryID != 2 || in.Amount != 30000 || in.Month != "2024-06" {
		t.Errorf("got %+v", in)
	}

	var verr *core.ValidationError
	if _, err := parseBudgetForm(url.Values{fieldAmount: {"100"}}, ""); !errors.As(err, &verr) || verr.Field != fieldCategoryID {
		t.Errorf("expected category error, got %v", err)
	}
}

func TestParseCredentialsKeepsPasswordAsTyped(t *testing.T) {
	creds, err := parseCredentials(url.Values{fieldEmail: {" a@example.com "}, fieldPassword: {" secret "}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Email != "a@example.com" {
		t.Errorf("email = %q", creds.Email)
	}
	if creds.Password != " secret " {
		t.Errorf("password = %q, want untouched", creds.Password)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"12", 12, true},
		{" 7 ", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := parseID(tt.in)
		if (err == nil) != tt.wantOK || got != tt.want {
			t.Errorf("parseID(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestPathID(t *testing.T) {
	mux := http.NewServeMux()
	var got int64
	var ok bool
	mux.HandleFunc("POST /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, ok = pathID(r)
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/items/42", nil))
	if !ok || got != 42 {
		t.Errorf("pathID = %d, %v", got, ok)
	}
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/items/x", nil))
	if ok {
		t.Error("non-numeric id accepted")
	}
}

func TestFormMonth(t *testing.T) {
	fallback := core.Month{Year: 2024, Month: time.June}
	if got := formMonth(url.Values{fieldMonth: {"2023-12"}}, fallback); got != (core.Month{Year: 2023, Month: time.December}) {
		t.Errorf("got %v", got)
	}
	if got := formMonth(url.Values{fieldMonth: {"junk"}}, fallback); got != fallback {
		t.Errorf("got %v, want fallback", got)
	}
}

func TestDefaultDate(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	june := core.Month{Year: 2024, Month: time.June}
	may := core.Month{Year: 2024, Month: time.May}

	tests := []struct {
		name      string
		requested string
		month     core.Month
		want      string
	}{
		{"requested day in month", "2024-06-03", june, "2024-06-03"},
		{"requested day outside month", "2024-05-03", june, "2024-06-15"},
		{"current month", "", june, "2024-06-15"},
		{"other month", "", may, "2024-05-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := defaultDate(tt.requested, tt.month, now).Key(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x1fc", "abc"},
		{"line1\nline2", "line1\nline2"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPostFormIgnoresQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x?"+fieldMonth+"=2024-01", strings.NewReader(fieldMonth+"=2024-02"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if got := postForm(req).Get(fieldMonth); got != "2024-02" {
		t.Errorf("got %q, want body value", got)
	}
}
