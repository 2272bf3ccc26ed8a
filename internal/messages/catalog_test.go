package messages

import (
	"testing"

	"golang.org/x/text/language"
)

func TestText(t *testing.T) {
	c := Default()
	tests := []struct {
		code string
		want string
	}{
		{CodeEmailAlreadyExists, "このメールアドレスは既に登録されています"},
		{CodeInvalidCredentials, "メールアドレスまたはパスワードが正しくありません"},
		{CodeInvalidAmount, "入力内容に誤りがあります"},
		{CodeCategoryInUse, "このカテゴリは使用中のため削除できません"},
		{CodeBudgetAlreadyExists, "この月のこのカテゴリの予算は既に存在します"},
		{CodeConnectionError, "接続に失敗しました。しばらくしてからお試しください"},
		{"SOMETHING_NEW", "エラーが発生しました"},
		{"", "エラーが発生しました"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := c.Text(tt.code); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestTablesCoverSameKeys(t *testing.T) {
	for k := range japanese {
		if _, ok := english[k]; !ok {
			t.Errorf("english table missing %q", k)
		}
	}
	for k := range english {
		if _, ok := japanese[k]; !ok {
			t.Errorf("japanese table missing %q", k)
		}
	}
}

func TestFromAcceptLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   language.Tag
	}{
		{"en-US,en;q=0.9", language.English},
		{"ja,en;q=0.5", language.Japanese},
		{"fr-FR", language.Japanese},
		{"", language.Japanese},
		{"!!!", language.Japanese},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			c := FromAcceptLanguage(tt.header, language.Japanese)
			if c.Language() != tt.want {
				t.Errorf("FromAcceptLanguage(%q) = %v, want %v", tt.header, c.Language(), tt.want)
			}
		})
	}
	if got := FromAcceptLanguage("en", language.Japanese).Text(CodeCategoryNotFound); got != "Category not found" {
		t.Errorf("english text = %q", got)
	}
}

func TestAmount(t *testing.T) {
	c := Default()
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{12500, "12,500"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := c.Amount(tt.in); got != tt.want {
			t.Errorf("Amount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
