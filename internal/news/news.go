// Package news はフランス語ニュース記事の取得を提供する。
// 取得元はmediastack API（既定）またはカテゴリ別のRSSフィード。
package news

import (
	"context"
	"strings"

	"github.com/hitoshi/ouioui/internal/model"
)

// Source はカテゴリを指定してニュース記事を取得する。
// 失敗時は*model.APIErrorを返し、呼び出し元は空の記事一覧とエラー表示で継続する。
type Source interface {
	Fetch(ctx context.Context, category string) ([]model.Article, error)
}

// DefaultCategory はカテゴリ未指定時に使うカテゴリ。
const DefaultCategory = "business"

// categories は選択可能なカテゴリ（表示順）。
var categories = []string{
	"general",
	"business",
	"technology",
	"entertainment",
	"sports",
	"science",
	"health",
}

// Categories は選択可能なカテゴリの一覧を返す。
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory はカテゴリ文字列を検証する。空文字列の場合はDefaultCategoryを返す。
func ParseCategory(s string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(s))
	if c == "" {
		return DefaultCategory, nil
	}
	for _, known := range categories {
		if c == known {
			return c, nil
		}
	}
	return "", model.NewInvalidCategoryError(s)
}

// TextSanitizer は記事テキストからHTMLを除去する。
type TextSanitizer interface {
	PlainText(raw string) string
}

// normalize はタイトル・説明をプレーンテキスト化し、必須項目の欠けた記事を除外する。
func normalize(articles []model.Article, sanitizer TextSanitizer) []model.Article {
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if sanitizer != nil {
			a.Title = sanitizer.PlainText(a.Title)
			a.Description = sanitizer.PlainText(a.Description)
		}
		a.Title = strings.TrimSpace(a.Title)
		a.URL = strings.TrimSpace(a.URL)
		a.Image = strings.TrimSpace(a.Image)
		if a.Title == "" || a.URL == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
