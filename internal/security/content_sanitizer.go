package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はニュースAPIから受け取ったタイトル・説明文を
// プレーンテキストに変換する。
// 記事テキストは難易度判定とテンプレート表示の両方に使われるため、
// タグはすべて除去し、エンティティは元の文字に戻す（表示時のエスケープはテンプレートが行う）。
type TextSanitizerService interface {
	// PlainText はHTMLタグを除去し、空白を1つにまとめたテキストを返す。
	PlainText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// PlainText はTextSanitizerServiceを実装する。
func (s *textSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
