// Package assessment は初回レベル判定（6問の多肢選択）を提供する。
//
// 各問は正解で2点、合計0〜12点の尺度で採点し、6つの等幅区間でCEFRレベルに変換する。
package assessment

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/ouioui/internal/cefr"
)

// PointsPerQuestion は1問正解あたりの得点。
const PointsPerQuestion = 2

//go:embed questions.yaml
var defaultQuestionsYAML []byte

var (
	// ErrIncompleteAnswers は全問に回答していない場合のエラー。
	ErrIncompleteAnswers = errors.New("incomplete answers")
	// ErrInvalidOption は選択肢の範囲外の回答を受け取った場合のエラー。
	ErrInvalidOption = errors.New("invalid option")
)

// Question は判定問題1問。
type Question struct {
	Sentence string     `yaml:"sentence"`
	Options  []string   `yaml:"options"`
	Correct  int        `yaml:"correct"`
	Level    cefr.Level `yaml:"level"`
}

// Bank は判定問題の集合。
type Bank struct {
	Questions []Question `yaml:"questions"`
}

// DefaultBank は埋め込みの問題集を読み込む。
func DefaultBank() (*Bank, error) {
	return ParseBank(defaultQuestionsYAML)
}

// ParseBank はYAMLから問題集を読み込み、構造を検証する。
func ParseBank(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if len(b.Questions) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}
	for i, q := range b.Questions {
		if q.Sentence == "" {
			return nil, fmt.Errorf("question %d: empty sentence", i)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %d: needs at least 2 options", i)
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return nil, fmt.Errorf("question %d: correct index %d out of range", i, q.Correct)
		}
		if q.Level != "" && !q.Level.Valid() {
			return nil, fmt.Errorf("question %d: %w: %q", i, cefr.ErrUnknownLevel, string(q.Level))
		}
	}
	return &b, nil
}

// MaxPoints は満点を返す。
func (b *Bank) MaxPoints() int {
	return len(b.Questions) * PointsPerQuestion
}

// Grade は回答（問題ごとの選択肢インデックス）を採点して得点を返す。
// 回答数が問題数と一致しない場合や、範囲外の選択肢を含む場合はエラーを返す。
func (b *Bank) Grade(answers []int) (int, error) {
	if len(answers) != len(b.Questions) {
		return 0, fmt.Errorf("%w: got %d of %d", ErrIncompleteAnswers, len(answers), len(b.Questions))
	}

	points := 0
	for i, q := range b.Questions {
		a := answers[i]
		if a < 0 || a >= len(q.Options) {
			return 0, fmt.Errorf("%w: question %d option %d", ErrInvalidOption, i, a)
		}
		if a == q.Correct {
			points += PointsPerQuestion
		}
	}
	return points, nil
}

// ScoreToLevel は0〜12点の得点をCEFRレベルに変換する。
// <=2:A1, <=4:A2, <=6:B1, <=8:B2, <=10:C1, それ以上:C2
func ScoreToLevel(points int) cefr.Level {
	switch {
	case points <= 2:
		return cefr.A1
	case points <= 4:
		return cefr.A2
	case points <= 6:
		return cefr.B1
	case points <= 8:
		return cefr.B2
	case points <= 10:
		return cefr.C1
	default:
		return cefr.C2
	}
}
