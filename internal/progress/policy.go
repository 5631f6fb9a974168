// Package progress は学習者フィードバックによるレベル調整ポリシーを提供する。
package progress

import (
	"errors"
	"fmt"

	"github.com/hitoshi/ouioui/internal/cefr"
)

// Feedback は記事ごとのフィードバックラベル。
type Feedback string

const (
	FeedbackTooEasy      Feedback = "Too Easy"
	FeedbackJustRight    Feedback = "Just Right"
	FeedbackChallenging  Feedback = "Challenging"
	FeedbackTooDifficult Feedback = "Too Difficult"
)

const (
	// upgradeThreshold はレベルを1段階上げるのに必要な累積ポイント。
	upgradeThreshold = 3.0
	// downgradeThreshold はレベルを1段階下げる累積ポイント。
	downgradeThreshold = -3.0
)

// ErrUnknownFeedback は4種類以外のラベルを受け取った場合のエラー。
var ErrUnknownFeedback = errors.New("unknown feedback label")

var weights = map[Feedback]float64{
	FeedbackTooEasy:      1,
	FeedbackJustRight:    0.5,
	FeedbackChallenging:  0.5,
	FeedbackTooDifficult: -1,
}

// Feedbacks はUIに表示する順序でフィードバックラベルを返す。
func Feedbacks() []Feedback {
	return []Feedback{FeedbackTooEasy, FeedbackJustRight, FeedbackChallenging, FeedbackTooDifficult}
}

// ParseFeedback は表示ラベルをFeedbackに変換する。
func ParseFeedback(s string) (Feedback, error) {
	f := Feedback(s)
	if _, ok := weights[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeedback, s)
	}
	return f, nil
}

// Weight はラベルの重みを返す。
func (f Feedback) Weight() (float64, error) {
	w, ok := weights[f]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeedback, string(f))
	}
	return w, nil
}

// Record はレベル調整に必要な学習者の状態。
type Record struct {
	Level          cefr.Level
	FeedbackPoints float64
}

// Outcome はフィードバック適用の結果。
type Outcome struct {
	Record
	// Previous は適用前のレベル。
	Previous cefr.Level
	// Changed はレベルが変化したか、または端でクランプされてポイントがリセットされたかを示す。
	Changed bool
}

// ApplyFeedback はフィードバックを1件適用した新しいレコードを返す。
//
// ポイントが3以上になるとレベルを1段階上げ、-3以下になると1段階下げる。
// どちらの場合もポイントは0にリセットされる。A1/C2の端ではレベルは変わらないが、
// 超過分は持ち越さず0にリセットする。
// 未知のラベルや不正なレベルの場合はエラーを返し、レコードは変更しない。
func ApplyFeedback(rec Record, label Feedback) (Outcome, error) {
	w, err := label.Weight()
	if err != nil {
		return Outcome{Record: rec, Previous: rec.Level}, err
	}
	if !rec.Level.Valid() {
		return Outcome{Record: rec, Previous: rec.Level}, fmt.Errorf("apply feedback: %w: %q", cefr.ErrUnknownLevel, string(rec.Level))
	}

	out := Outcome{Previous: rec.Level}
	points := rec.FeedbackPoints + w

	switch {
	case points >= upgradeThreshold:
		out.Level = rec.Level.Harder()
		out.FeedbackPoints = 0
		out.Changed = true
	case points <= downgradeThreshold:
		out.Level = rec.Level.Easier()
		out.FeedbackPoints = 0
		out.Changed = true
	default:
		out.Level = rec.Level
		out.FeedbackPoints = points
	}

	return out, nil
}

// Direction はレベル変化の方向を "up"、"down"、"none" で返す。
func (o Outcome) Direction() string {
	switch {
	case o.Level.Index() > o.Previous.Index():
		return "up"
	case o.Level.Index() < o.Previous.Index():
		return "down"
	default:
		return "none"
	}
}
