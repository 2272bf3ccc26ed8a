package forms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"budgetcal/internal/api"
	"budgetcal/internal/core"
	"budgetcal/internal/messages"
	"golang.org/x/text/language"
)

func apiError(status int, reason string, metadata map[string]string) *api.APIError {
	e := &api.APIError{Status: status}
	if reason != "" || metadata != nil {
		e.Envelope.Error.Details = []api.Detail{{Reason: reason, Metadata: metadata}}
	}
	return e
}

func TestAdapt(t *testing.T) {
	ja := messages.Default()
	tests := []struct {
		name       string
		err        error
		wantFields map[string]string
		wantMsg    string
	}{
		{
			name:       "400 with metadata gives field errors only",
			err:        apiError(400, "VALIDATION_ERROR", map[string]string{"email": "INVALID_EMAIL", "password": "must be at least 8 characters"}),
			wantFields: map[string]string{"email": "入力内容に誤りがあります", "password": "must be at least 8 characters"},
		},
		{
			name:    "400 without metadata gives a general message",
			err:     apiError(400, "INVALID_CREDENTIALS", nil),
			wantMsg: "メールアドレスまたはパスワードが正しくありません",
		},
		{
			name:    "401 ignores metadata",
			err:     apiError(401, "INVALID_CREDENTIALS", map[string]string{"email": "x"}),
			wantMsg: "メールアドレスまたはパスワードが正しくありません",
		},
		{
			name:    "409 ignores metadata",
			err:     apiError(409, "EMAIL_ALREADY_EXISTS", map[string]string{"email": "taken"}),
			wantMsg: "このメールアドレスは既に登録されています",
		},
		{
			name:    "500",
			err:     apiError(500, "DATABASE_ERROR", nil),
			wantMsg: "エラーが発生しました",
		},
		{
			name:    "unknown reason falls back to the generic message",
			err:     apiError(422, "SOMETHING_NEW", nil),
			wantMsg: "エラーが発生しました",
		},
		{
			name:    "no envelope",
			err:     apiError(502, "", nil),
			wantMsg: "エラーが発生しました",
		},
		{
			name:    "connection error",
			err:     &api.ConnectionError{Err: errors.New("dial tcp: connection refused")},
			wantMsg: "接続に失敗しました。しばらくしてからお試しください",
		},
		{
			name:    "deadline is a connection problem",
			err:     context.DeadlineExceeded,
			wantMsg: "接続に失敗しました。しばらくしてからお試しください",
		},
		{
			name:    "wrapped api error",
			err:     fmt.Errorf("create budget: %w", apiError(409, "BUDGET_ALREADY_EXISTS", nil)),
			wantMsg: "この月のこのカテゴリの予算は既に存在します",
		},
		{
			name:       "local validation",
			err:        &core.ValidationError{Field: "amount", Code: "INVALID_AMOUNT"},
			wantFields: map[string]string{"amount": "入力内容に誤りがあります"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Adapt(tt.err, ja)
			if !got.ClearSensitive {
				t.Error("sensitive input must be cleared on failure")
			}
			if got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
			if len(tt.wantFields) == 0 && len(got.FieldErrors) != 0 {
				t.Errorf("unexpected field errors %v", got.FieldErrors)
			}
			if len(tt.wantFields) > 0 && !reflect.DeepEqual(got.FieldErrors, tt.wantFields) {
				t.Errorf("fields = %v, want %v", got.FieldErrors, tt.wantFields)
			}
			if !got.HasErrors() {
				t.Error("a failure must show something")
			}
		})
	}
}

func TestAdaptNil(t *testing.T) {
	s := Adapt(nil, nil)
	if s.HasErrors() || s.ClearSensitive {
		t.Errorf("got %+v", s)
	}
}

func TestAdaptUsesCatalogLanguage(t *testing.T) {
	en := messages.New(language.English)
	s := Adapt(apiError(401, "INVALID_CREDENTIALS", nil), en)
	if s.Message != "Incorrect email address or password" {
		t.Errorf("message = %q", s.Message)
	}
	if s.Field("email") != "" {
		t.Error("no field errors expected")
	}
}
