package model

import "github.com/hitoshi/ouioui/internal/cefr"

// Article はニュースAPIから取得した記事を表す。
// リクエストごとに生成され、レベル付与以外で変更されることはない。
// キャッシュや重複排除は行わない。
type Article struct {
	Title       string
	Description string
	Image       string // 画像URL。空の場合は表示対象外
	URL         string
	Source      string
	Category    string

	// ImageValid は画像URLの到達性チェックに合格したかどうか。
	ImageValid bool
	// Level は難易度判定で付与されたレベル。未判定の場合は空。
	Level cefr.Level
}

// Text は難易度判定に渡すテキスト（タイトルと説明を半角スペースで連結）を返す。
func (a Article) Text() string {
	return a.Title + " " + a.Description
}
