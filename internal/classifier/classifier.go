// Package classifier は記事テキストの難易度判定（CEFR 6クラス分類）の実装を提供する。
//
// 判定モデル自体は外部にあり、このパッケージは「テキストと最大トークン長を渡すと
// クラスインデックス（0〜5）を返す」という狭いインターフェースの背後に隠す。
package classifier

import (
	"context"
	"errors"
	"sync"

	"github.com/hitoshi/ouioui/internal/cefr"
)

// DefaultMaxTokens は判定モデルに渡す最大トークン長。
const DefaultMaxTokens = 512

// ErrUnavailable は判定バックエンドに到達できない場合のエラー。
var ErrUnavailable = errors.New("classifier unavailable")

// Classifier はテキストを難易度クラスインデックス（0=A1 〜 5=C2）に分類する。
type Classifier interface {
	Classify(ctx context.Context, text string, maxTokens int) (int, error)
}

// Func は関数をClassifierとして扱うためのアダプタ。
type Func func(ctx context.Context, text string, maxTokens int) (int, error)

// Classify はClassifierインターフェースを実装する。
func (f Func) Classify(ctx context.Context, text string, maxTokens int) (int, error) {
	return f(ctx, text, maxTokens)
}

// PassScoped は記事一覧1回分のラベル付けごとに状態を持ち直す分類器。
// NewPassは他のパスと状態を共有しない分類器を返す。
type PassScoped interface {
	Classifier
	NewPass() Classifier
}

// ForPass はラベル付け1回分に使う分類器を返す。
// PassScopedならNewPassの結果、それ以外はcそのもの。
func ForPass(c Classifier) Classifier {
	if ps, ok := c.(PassScoped); ok {
		return ps.NewPass()
	}
	return c
}

// RoundRobin はテキストを見ずにA1〜C2を順番に割り当てるデモ用の分類器。
// 判定モデルを用意できない環境での動作確認に使う。
// 巡回はラベル付けのたびにA1から始まり、他の学習者のリクエストに影響されない。
type RoundRobin struct {
	mu   sync.Mutex
	next int
}

// NewRoundRobin はRoundRobinを生成する。
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// NewPass はA1から巡回し直す新しいRoundRobinを返す。
func (r *RoundRobin) NewPass() Classifier {
	return NewRoundRobin()
}

// Classify は次のクラスインデックスを返す。
func (r *RoundRobin) Classify(_ context.Context, _ string, _ int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.next
	r.next = (r.next + 1) % cefr.Count()
	return i, nil
}

// compile-time interface check
var (
	_ Classifier = Func(nil)
	_ PassScoped = (*RoundRobin)(nil)
)
