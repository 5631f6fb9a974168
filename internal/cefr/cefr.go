// Package cefr はCEFR（ヨーロッパ言語共通参照枠）の6段階レベルを扱う。
// 学習者の習熟度と記事の難易度の両方をこの順序付き集合で表現する。
package cefr

import (
	"errors"
	"fmt"
	"strings"
)

// Level はCEFRレベルを表す。ゼロ値（空文字列）は「未判定」を意味する。
type Level string

// 定義済みレベル（易しい順）
const (
	A1 Level = "A1"
	A2 Level = "A2"
	B1 Level = "B1"
	B2 Level = "B2"
	C1 Level = "C1"
	C2 Level = "C2"
)

// ErrUnknownLevel は6段階のいずれにも該当しない値を受け取った場合のエラー。
var ErrUnknownLevel = errors.New("unknown CEFR level")

var ordered = [...]Level{A1, A2, B1, B2, C1, C2}

// Levels は易しい順に並んだ6段階のレベルを返す。
// 戻り値は呼び出しごとに新しいスライスであり、変更しても内部状態に影響しない。
func Levels() []Level {
	out := make([]Level, len(ordered))
	copy(out, ordered[:])
	return out
}

// Count はレベル数（6）を返す。
func Count() int {
	return len(ordered)
}

// ParseLevel は文字列をLevelに変換する。前後の空白と大文字小文字は無視する。
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}

// FromIndex は序数（0〜5）に対応するレベルを返す。
func FromIndex(i int) (Level, error) {
	if i < 0 || i >= len(ordered) {
		return "", fmt.Errorf("%w: index %d", ErrUnknownLevel, i)
	}
	return ordered[i], nil
}

// Index はレベルの序数を返す。未知のレベルの場合は-1を返す。
func (l Level) Index() int {
	for i, o := range ordered {
		if o == l {
			return i
		}
	}
	return -1
}

// Valid はレベルが6段階のいずれかであるかを判定する。
func (l Level) Valid() bool {
	return l.Index() >= 0
}

// Harder は1段階難しいレベルを返す。C2ではC2のまま。
func (l Level) Harder() Level {
	i := l.Index()
	if i < 0 {
		return l
	}
	if i+1 >= len(ordered) {
		return ordered[len(ordered)-1]
	}
	return ordered[i+1]
}

// Easier は1段階易しいレベルを返す。A1ではA1のまま。
func (l Level) Easier() Level {
	i := l.Index()
	if i < 0 {
		return l
	}
	if i == 0 {
		return ordered[0]
	}
	return ordered[i-1]
}

func (l Level) String() string {
	return string(l)
}
