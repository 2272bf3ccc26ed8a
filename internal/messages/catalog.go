// Package messages maps backend reason codes and UI events to user-facing
// text.
//
// Japanese is the default language. An English table is available and is
// picked by matching the browser's Accept-Language header.
package messages

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reason codes sent by the budget API in error.details[0].reason.
const (
	CodeEmailAlreadyExists     = "EMAIL_ALREADY_EXISTS"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeInvalidEmail           = "INVALID_EMAIL"
	CodeInvalidPassword        = "INVALID_PASSWORD"
	CodeInvalidCategoryName    = "INVALID_CATEGORY_NAME"
	CodeInvalidCategoryColor   = "INVALID_CATEGORY_COLOR"
	CodeInvalidTransactionType = "INVALID_TRANSACTION_TYPE"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeInvalidDate            = "INVALID_DATE"
	CodeInvalidMonth           = "INVALID_MONTH"
	CodeInvalidBudgetAmount    = "INVALID_BUDGET_AMOUNT"
	CodeValidationError        = "VALIDATION_ERROR"
	CodeCategoryNotFound       = "CATEGORY_NOT_FOUND"
	CodeCategoryInUse          = "CATEGORY_IN_USE"
	CodeTransactionNotFound    = "TRANSACTION_NOT_FOUND"
	CodeBudgetNotFound         = "BUDGET_NOT_FOUND"
	CodeBudgetAlreadyExists    = "BUDGET_ALREADY_EXISTS"
	CodeDatabaseError          = "DATABASE_ERROR"
	CodeUnknownError           = "UNKNOWN_ERROR"
	CodeConnectionError        = "CONNECTION_ERROR"
)

// Keys for UI notices that are not backend reason codes.
const (
	NoticeSignedIn         = "notice.signed_in"
	NoticeSignedUp         = "notice.signed_up"
	NoticeSignedOut        = "notice.signed_out"
	NoticeCategoryCreated  = "notice.category_created"
	NoticeCategoryUpdated  = "notice.category_updated"
	NoticeCategoryDeleted  = "notice.category_deleted"
	NoticeBudgetCreated    = "notice.budget_created"
	NoticeBudgetUpdated    = "notice.budget_updated"
	NoticeBudgetDeleted    = "notice.budget_deleted"
	NoticeTxCreated        = "notice.transaction_created"
	NoticeTxUpdated        = "notice.transaction_updated"
	NoticeTxDeleted        = "notice.transaction_deleted"
	NoticeSessionExpired   = "notice.session_expired"
	NoticeTooManyRequests  = "notice.too_many_requests"
	LabelNotFound          = "label.not_found"
	LabelNoBudget          = "label.no_budget"
	LabelUnknownCategory   = "label.unknown_category"
	LabelCategoryRequired  = "label.category_required"
	LabelAmountInvalid     = "label.amount_invalid"
	LabelConnectionTrouble = "label.connection_trouble"
)

var japanese = map[string]string{
	CodeEmailAlreadyExists:     "このメールアドレスは既に登録されています",
	CodeInvalidCredentials:     "メールアドレスまたはパスワードが正しくありません",
	CodeInvalidEmail:           "入力内容に誤りがあります",
	CodeInvalidPassword:        "入力内容に誤りがあります",
	CodeInvalidCategoryName:    "入力内容に誤りがあります",
	CodeInvalidCategoryColor:   "入力内容に誤りがあります",
	CodeInvalidTransactionType: "入力内容に誤りがあります",
	CodeInvalidAmount:          "入力内容に誤りがあります",
	CodeInvalidDate:            "入力内容に誤りがあります",
	CodeInvalidMonth:           "入力内容に誤りがあります",
	CodeInvalidBudgetAmount:    "入力内容に誤りがあります",
	CodeValidationError:        "入力内容に誤りがあります",
	CodeCategoryNotFound:       "カテゴリが見つかりません",
	CodeCategoryInUse:          "このカテゴリは使用中のため削除できません",
	CodeTransactionNotFound:    "取引が見つかりません",
	CodeBudgetNotFound:         "予算が見つかりません",
	CodeBudgetAlreadyExists:    "この月のこのカテゴリの予算は既に存在します",
	CodeDatabaseError:          "エラーが発生しました",
	CodeUnknownError:           "エラーが発生しました",
	CodeConnectionError:        "接続に失敗しました。しばらくしてからお試しください",

	NoticeSignedIn:         "ログインしました",
	NoticeSignedUp:         "会員登録が完了しました",
	NoticeSignedOut:        "ログアウトしました",
	NoticeCategoryCreated:  "カテゴリを作成しました",
	NoticeCategoryUpdated:  "カテゴリを更新しました",
	NoticeCategoryDeleted:  "カテゴリを削除しました",
	NoticeBudgetCreated:    "予算を作成しました",
	NoticeBudgetUpdated:    "予算を更新しました",
	NoticeBudgetDeleted:    "予算を削除しました",
	NoticeTxCreated:        "取引を追加しました",
	NoticeTxUpdated:        "取引を更新しました",
	NoticeTxDeleted:        "取引を削除しました",
	NoticeSessionExpired:   "セッションの有効期限が切れました。もう一度お試しください",
	NoticeTooManyRequests:  "リクエストが多すぎます。しばらくしてからお試しください",
	LabelNotFound:          "ページが見つかりません",
	LabelNoBudget:          "予算未設定",
	LabelUnknownCategory:   "不明",
	LabelCategoryRequired:  "カテゴリを選択してください",
	LabelAmountInvalid:     "金額を正しく入力してください",
	LabelConnectionTrouble: "サーバーに接続できませんでした",
}

var english = map[string]string{
	CodeEmailAlreadyExists:     "This email address is already registered",
	CodeInvalidCredentials:     "Incorrect email address or password",
	CodeInvalidEmail:           "Please check your input",
	CodeInvalidPassword:        "Please check your input",
	CodeInvalidCategoryName:    "Please check your input",
	CodeInvalidCategoryColor:   "Please check your input",
	CodeInvalidTransactionType: "Please check your input",
	CodeInvalidAmount:          "Please check your input",
	CodeInvalidDate:            "Please check your input",
	CodeInvalidMonth:           "Please check your input",
	CodeInvalidBudgetAmount:    "Please check your input",
	CodeValidationError:        "Please check your input",
	CodeCategoryNotFound:       "Category not found",
	CodeCategoryInUse:          "This category is in use and cannot be deleted",
	CodeTransactionNotFound:    "Transaction not found",
	CodeBudgetNotFound:         "Budget not found",
	CodeBudgetAlreadyExists:    "A budget for this category already exists for this month",
	CodeDatabaseError:          "An error occurred",
	CodeUnknownError:           "An error occurred",
	CodeConnectionError:        "Connection failed. Please try again later",

	NoticeSignedIn:         "Signed in",
	NoticeSignedUp:         "Your account has been created",
	NoticeSignedOut:        "Signed out",
	NoticeCategoryCreated:  "Category created",
	NoticeCategoryUpdated:  "Category updated",
	NoticeCategoryDeleted:  "Category deleted",
	NoticeBudgetCreated:    "Budget created",
	NoticeBudgetUpdated:    "Budget updated",
	NoticeBudgetDeleted:    "Budget deleted",
	NoticeTxCreated:        "Transaction added",
	NoticeTxUpdated:        "Transaction updated",
	NoticeTxDeleted:        "Transaction deleted",
	NoticeSessionExpired:   "Your session expired. Please try again",
	NoticeTooManyRequests:  "Too many requests. Please try again later",
	LabelNotFound:          "Page not found",
	LabelNoBudget:          "No budget set",
	LabelUnknownCategory:   "Unknown",
	LabelCategoryRequired:  "Please select a category",
	LabelAmountInvalid:     "Please enter a valid amount",
	LabelConnectionTrouble: "Could not reach the server",
}

var supported = []language.Tag{language.Japanese, language.English}

var matcher = language.NewMatcher(supported)

// Catalog resolves reason codes for one language.
type Catalog struct {
	tag     language.Tag
	table   map[string]string
	printer *message.Printer
}

// New returns the catalog for the best match of tag. Anything that is not
// English resolves to Japanese.
func New(tag language.Tag) *Catalog {
	_, idx, _ := matcher.Match(tag)
	table := japanese
	if supported[idx] == language.English {
		table = english
	}
	return &Catalog{
		tag:     supported[idx],
		table:   table,
		printer: message.NewPrinter(supported[idx]),
	}
}

// Default is the Japanese catalog.
func Default() *Catalog {
	return New(language.Japanese)
}

// FromAcceptLanguage picks a catalog from an Accept-Language header value,
// falling back to fallback when the header is empty or unparsable.
func FromAcceptLanguage(header string, fallback language.Tag) *Catalog {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return New(fallback)
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return New(fallback)
	}
	return New(supported[idx])
}

// Language returns the catalog's language tag.
func (c *Catalog) Language() language.Tag {
	return c.tag
}

// Text returns the message for code, or the generic error message when the
// code is unknown.
func (c *Catalog) Text(code string) string {
	if msg, ok := c.table[code]; ok {
		return msg
	}
	return c.table[CodeUnknownError]
}

// Lookup returns the message for code and whether the code is known.
func (c *Catalog) Lookup(code string) (string, bool) {
	msg, ok := c.table[code]
	return msg, ok
}

// Amount formats a yen amount with grouping separators, e.g. "12,500".
func (c *Catalog) Amount(v int64) string {
	return c.printer.Sprintf("%d", v)
}
