// Package article はニュース記事への難易度付与と、学習者レベルに合った記事の選別を提供する。
package article

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/ouioui/internal/cefr"
	"github.com/hitoshi/ouioui/internal/classifier"
	"github.com/hitoshi/ouioui/internal/model"
)

// ErrClassIndexOutOfRange は分類器が0〜5以外のクラスインデックスを返した場合のエラー。
var ErrClassIndexOutOfRange = errors.New("class index out of range")

// Labeler は記事に画像チェックと難易度判定の結果を付与する。
type Labeler struct {
	Validator  ImageValidator
	Classifier classifier.Classifier
	// MaxTokens は分類器に渡す最大トークン長。0以下の場合はclassifier.DefaultMaxTokens。
	MaxTokens int
}

// Label は既定の最大トークン長で記事にレベルを付与する。
func Label(ctx context.Context, articles []model.Article, validator ImageValidator, c classifier.Classifier) ([]model.Article, error) {
	l := Labeler{Validator: validator, Classifier: c}
	return l.Label(ctx, articles)
}

// Label は入力と同じ順序・件数の記事スライスを新たに返す（入力は変更しない）。
//
// 画像チェックは記事ごとに1回だけ行う。画像が有効な記事のみ
// 「タイトル + 半角スペース + 説明」を分類器に渡し、返されたインデックスを
// A1〜C2に対応づける。画像が無効な記事はLevelが空のまま返す。
// 分類器のエラーまたは範囲外のインデックスで処理を中断し、nilとエラーを返す。
// 呼び出しごとに独立しており、同じ入力には同じレベルを付ける。
func (l Labeler) Label(ctx context.Context, articles []model.Article) ([]model.Article, error) {
	maxTokens := l.MaxTokens
	if maxTokens <= 0 {
		maxTokens = classifier.DefaultMaxTokens
	}
	c := classifier.ForPass(l.Classifier)

	out := make([]model.Article, len(articles))
	for i, a := range articles {
		a.Level = ""
		a.ImageValid = l.Validator.IsValid(ctx, a.Image)
		if a.ImageValid {
			idx, err := c.Classify(ctx, a.Text(), maxTokens)
			if err != nil {
				return nil, fmt.Errorf("classify article %q: %w", a.URL, err)
			}
			level, err := cefr.FromIndex(idx)
			if err != nil {
				return nil, fmt.Errorf("%w: %d for article %q", ErrClassIndexOutOfRange, idx, a.URL)
			}
			a.Level = level
		}
		out[i] = a
	}

	return out, nil
}

// Select は指定レベルかつ画像が有効な記事だけを入力順のまま返す。
// 戻り値は常に入力の部分集合で、同じレベルで再適用しても結果は変わらない。
func Select(articles []model.Article, level cefr.Level) []model.Article {
	selected := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if a.ImageValid && a.Level == level {
			selected = append(selected, a)
		}
	}
	return selected
}
